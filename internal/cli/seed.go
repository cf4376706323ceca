package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"medexam-service/internal/config"
	"medexam-service/internal/domain"
	pgstore "medexam-service/internal/infra/postgres"
)

// NewSeedCmd inserts the sample question set into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample questions into the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.NewQuestionStore(pool)
	for _, q := range sampleQuestions() {
		if _, err := store.Insert(ctx, q); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}
	fmt.Printf("seeded %d questions\n", len(sampleQuestions()))
	return nil
}

// sampleQuestions provides a minimal question bank for demos and the
// in-memory fallback server.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Stem: "Which of the following is the most common cause of iron deficiency anemia?",
			Choices: []string{
				"Chronic blood loss",
				"Inadequate dietary intake",
				"Malabsorption",
				"Increased iron requirements",
			},
			CorrectIndex: 0,
			Topic:        "Hematology",
			Difficulty:   "Medium",
			Explanation:  "Chronic blood loss is the most common cause of iron deficiency anemia in adults, often due to GI bleeding or menstrual losses.",
			IsActive:     true,
		},
		{
			Stem: "What is the primary function of neutrophils?",
			Choices: []string{
				"Antibody production",
				"Phagocytosis of bacteria",
				"Allergic reactions",
				"Antigen presentation",
			},
			CorrectIndex: 1,
			Topic:        "Hematology",
			Difficulty:   "Easy",
			Explanation:  "Neutrophils are the primary cells responsible for phagocytosis of bacteria and are the first responders to bacterial infections.",
			IsActive:     true,
		},
		{
			Stem: "Which organism is the most common cause of community-acquired pneumonia?",
			Choices: []string{
				"Haemophilus influenzae",
				"Streptococcus pneumoniae",
				"Staphylococcus aureus",
				"Mycoplasma pneumoniae",
			},
			CorrectIndex: 1,
			Topic:        "Microbiology",
			Difficulty:   "Medium",
			Explanation:  "Streptococcus pneumoniae (pneumococcus) is the most common bacterial cause of community-acquired pneumonia.",
			IsActive:     true,
		},
	}
}
