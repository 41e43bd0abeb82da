package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thisisprabalapndey/pathpooja/internal/catalog"
	"github.com/thisisprabalapndey/pathpooja/internal/config"
)

var (
	listCategory string
	listSort     string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog database",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply catalog migrations, including the seed products",
	RunE:  migrateCatalog,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog products",
	RunE:  listProducts,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(migrateCmd, listCmd)

	listCmd.Flags().StringVar(&listCategory, "category", "", "only list products in this category")
	listCmd.Flags().StringVar(&listSort, "sort", "", "sort by price_asc, price_desc or name")
}

func migrateCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	fmt.Printf("Catalog migrated at %s\n", cfg.Catalog.DBPath)
	return nil
}

func listProducts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cat, err := loadCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tNAME\tPRICE\tORIGINAL")
	for _, p := range cat.Query(listCategory, "", catalog.SortKey(listSort)) {
		original := "-"
		if p.OriginalPrice.IsPositive() {
			original = p.OriginalPrice.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Category, p.Name, p.Price.StringFixed(2), original)
	}
	return w.Flush()
}

// openCatalog opens the catalog database and brings its schema up to date.
func openCatalog(cfg *config.Config) (*catalog.Repository, error) {
	if dir := filepath.Dir(cfg.Catalog.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog dir: %w", err)
		}
	}

	repo, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := repo.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return repo, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	repo, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	return catalog.Load(ctx, repo)
}
