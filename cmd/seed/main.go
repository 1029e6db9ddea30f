// Command seed submits demo reviews through the service layer so that firm
// aggregates are computed exactly as they are for real submissions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RakeshKhadav/VC/internal/app"
	"github.com/RakeshKhadav/VC/internal/config"
	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/service"
	"github.com/RakeshKhadav/VC/pkg/logger"
)

type demoReview struct {
	firm, website    string
	resp, fair, supp float64
	industry, stage  string
	year             int
	text             string
}

var demoReviews = []demoReview{
	{"Harbor Light Ventures", "https://harborlight.example", 5, 4, 3, "Fintech", "Seed", 2023,
		"Term sheet in nine days. Diligence was thorough but respectful of our time."},
	{"Harbor Light Ventures", "", 3, 3, 3, "Fintech", "Series A", 2024,
		"Solid partner, slow to respond once the round closed."},
	{"Harbor Light Ventures", "", 4, 5, 5, "Healthtech", "Seed", 2024,
		"Fair terms and they pulled in two design partners for us in the first quarter."},
	{"Northfield Capital", "https://northfield.example", 4, 4, 5, "SaaS", "Series A", 2022,
		"Board meetings were focused and the platform team helped with our first sales hires."},
	{"Northfield Capital", "", 2, 3, 2, "SaaS", "Seed", 2023,
		"Went quiet for weeks during a bridge round. Support picked up later."},
	{"Copperline Partners", "https://copperline.example", 5, 5, 4, "Climate", "Pre-seed", 2024,
		"Decision on the first call, clean SAFE, and honest feedback on the deck."},
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.ServiceName+"-seed", cfg.LogLevel)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, d := range demoReviews {
		year := d.year
		_, firm, err := application.Reviews.Submit(ctx, &service.SubmitReviewInput{
			FirmName:          d.firm,
			FirmWebsite:       d.website,
			Ratings:           domain.Ratings{Responsiveness: d.resp, Fairness: d.fair, Support: d.supp},
			ReviewText:        d.text,
			Industry:          d.industry,
			FundingStage:      d.stage,
			YearOfInteraction: &year,
		})
		if err != nil {
			return fmt.Errorf("submit review for %s: %w", d.firm, err)
		}
		log.Info("seeded review",
			slog.String("firm_slug", firm.Slug),
			slog.Int("total_reviews", firm.TotalReviews),
			slog.Float64("avg_rating", firm.AvgRating()),
		)
	}
	return nil
}
