package directory

import (
	"context"

	"casinodir/internal/slug"
)

func str(s string) *string { return &s }

// demoCatalogue is inserted by Seed on an empty installation. Aggregates
// start at zero; only real reviews move them.
var demoCatalogue = []EntryInput{
	{
		Name:           "Royal Vegas Casino",
		LogoURL:        "https://via.placeholder.com/150?text=Royal+Vegas",
		Bonus:          "Welcome Bonus: $500 + 100 Free Spins",
		License:        "Malta Gaming Authority",
		Description:    str("Royal Vegas Casino offers a premium gaming experience with over 500 slot games, live dealer tables, and a comprehensive loyalty program. Established in 2000, it has become one of the most trusted online casinos in the industry."),
		Country:        str("Malta"),
		PaymentMethods: []string{"Visa", "Mastercard", "PayPal", "Skrill", "Neteller", "Bitcoin"},
	},
	{
		Name:           "Betway Casino",
		LogoURL:        "https://via.placeholder.com/150?text=Betway",
		Bonus:          "100% Match Bonus up to $1,000",
		License:        "UK Gambling Commission",
		Description:    str("Betway Casino is a leading online casino platform known for its extensive game library, fast payouts, and excellent customer support. The casino features games from top providers and offers a mobile-optimized experience."),
		Country:        str("United Kingdom"),
		PaymentMethods: []string{"Visa", "Mastercard", "PayPal", "Bank Transfer", "Ethereum"},
	},
	{
		Name:           "LeoVegas Casino",
		LogoURL:        "https://via.placeholder.com/150?text=LeoVegas",
		Bonus:          "Up to $1,200 + 120 Free Spins",
		License:        "Malta Gaming Authority",
		Description:    str(`LeoVegas is the "King of Mobile Casino" with an award-winning mobile platform. It offers a wide selection of slots, table games, and live casino options. The casino is known for its quick withdrawals and 24/7 customer service.`),
		Country:        str("Sweden"),
		PaymentMethods: []string{"Visa", "Mastercard", "PayPal", "Trustly", "Zimpler"},
	},
	{
		Name:           "888 Casino",
		LogoURL:        "https://via.placeholder.com/150?text=888+Casino",
		Bonus:          "New Player Package: $400 + 88 Free Spins",
		License:        "UK Gambling Commission",
		Description:    str("888 Casino is one of the oldest and most respected online casinos, operating since 1997. It offers a diverse range of games including exclusive titles, live dealer games, and a comprehensive sportsbook. The platform is available in multiple languages."),
		Country:        str("United Kingdom"),
		PaymentMethods: []string{"Visa", "Mastercard", "PayPal", "Skrill", "Neteller", "Apple Pay"},
	},
	{
		Name:           "Casumo Casino",
		LogoURL:        "https://via.placeholder.com/150?text=Casumo",
		Bonus:          "Welcome Bonus: $1,200 + 200 Free Spins",
		License:        "Malta Gaming Authority",
		Description:    str("Casumo is an innovative casino platform that gamifies the online casino experience. Players earn rewards and level up while playing. The casino features a unique design, fast payments, and a vast selection of games from top providers."),
		Country:        str("Malta"),
		PaymentMethods: []string{"Visa", "Mastercard", "PayPal", "Skrill", "Trustly", "Bitcoin"},
	},
}

const (
	SeedAdded   = "success"
	SeedSkipped = "skipped"
	SeedFailed  = "error"
)

type SeedResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SeedSummary counts results by status.
type SeedSummary struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func Summarize(results []SeedResult) SeedSummary {
	var sum SeedSummary
	for _, r := range results {
		switch r.Status {
		case SeedAdded:
			sum.Added++
		case SeedSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	return sum
}

// Seed inserts the demo catalogue, skipping entries whose slug is already
// present. A failure on one entry does not stop the others.
func (s *Service) Seed(ctx context.Context) ([]SeedResult, error) {
	results := make([]SeedResult, 0, len(demoCatalogue))

	for _, in := range demoCatalogue {
		taken, err := s.repos.Entries.SlugExists(ctx, slug.Generate(in.Name), "")
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			results = append(results, SeedResult{Name: in.Name, Status: SeedFailed, Message: err.Error()})
			continue
		}
		if taken {
			results = append(results, SeedResult{Name: in.Name, Status: SeedSkipped, Message: "Already exists"})
			continue
		}

		if _, err := s.CreateEntry(ctx, in); err != nil {
			s.logger.Errorw("seed insert failed", "name", in.Name, "error", err)
			results = append(results, SeedResult{Name: in.Name, Status: SeedFailed, Message: err.Error()})
			continue
		}
		results = append(results, SeedResult{Name: in.Name, Status: SeedAdded, Message: "Added successfully"})
	}

	sum := Summarize(results)
	s.logger.Infow("seeding completed", "added", sum.Added, "skipped", sum.Skipped, "failed", sum.Failed)
	return results, nil
}
