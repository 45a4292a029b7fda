package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imeidesk/internal/config"
	"imeidesk/internal/registry"
)

// seedData holds the demo companies and owners written by `imeidesk seed`.
var seedData = []struct {
	id      string
	name    string
	persons []registry.NewPerson
}{
	{
		id:   "acme-telecom",
		name: "Acme Telecom",
		persons: []registry.NewPerson{
			{Name: "Ada Mensah", Identification: "GHA-790215-001", Phone: "+233 20 123 4567"},
			{Name: "Kofi Boateng", Identification: "GHA-880402-114"},
			{Name: "Ama Serwaa", Identification: "P-EU-5521904", Phone: "+233 24 555 0192"},
		},
	},
	{
		id:   "globex",
		name: "Globex",
		persons: []registry.NewPerson{
			{Name: "Hank Scorpio", Identification: "US-440-19-2832"},
		},
	},
	{
		id:   "initech",
		name: "Initech",
		persons: []registry.NewPerson{
			{Name: "Peter Gibbons", Identification: "US-221-48-9901", Phone: "+1 512 555 0137"},
			{Name: "Samir Nagheenanajar", Identification: "P-IN-88210455"},
		},
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the local registry with sample data",
	Long: `Populate the local (offline) registry database with sample companies
and owners for demos and development. Safe to run more than once:
companies are upserted by id, and people are only added when their
identification is not present yet.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := cfg.Registry.LocalPath
	if path == "" {
		path = config.DefaultLocalRegistryPath()
	}

	local, err := registry.NewLocalRegistry(path)
	if err != nil {
		return fmt.Errorf("opening local registry: %w", err)
	}
	defer func() { _ = local.Close() }()

	ctx := context.Background()
	created := 0

	for _, company := range seedData {
		if err := local.SeedCompany(ctx, company.id, company.name); err != nil {
			return fmt.Errorf("seeding company %s: %w", company.name, err)
		}

		existing, err := local.PersonsByCompany(ctx, company.id)
		if err != nil {
			return fmt.Errorf("listing owners for %s: %w", company.name, err)
		}
		known := make(map[string]bool, len(existing))
		for _, p := range existing {
			known[p.Identification] = true
		}

		for _, person := range company.persons {
			if known[person.Identification] {
				continue
			}
			person.CompanyID = company.id
			if _, err := local.CreatePerson(ctx, person); err != nil {
				return fmt.Errorf("creating %s: %w", person.Name, err)
			}
			created++
		}
	}

	fmt.Printf("Seeded %d companies, %d new owners into %s\n", len(seedData), created, local.Path())
	return nil
}
