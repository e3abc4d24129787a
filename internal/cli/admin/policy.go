package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/propelgov/propelai/internal/config"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/repository"
)

func PolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage allocation policies",
		Long:  "Inspect and tune per-model-category allocation policies",
	}

	cmd.AddCommand(PolicyGetCmd())
	cmd.AddCommand(PolicySetCmd())
	cmd.AddCommand(PolicyDeleteCmd())

	return cmd
}

func PolicyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <model-category>",
		Short: "Show the allocation policy for a model category",
		Long:  "Show the stored allocation policy for a model category, or the built-in default when none is stored",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyGet,
	}
}

func runPolicyGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mc := domain.ModelCategory(args[0])
	if !domain.IsValidModelCategory(mc) {
		return fmt.Errorf("invalid model category %q (expected small, medium or large)", args[0])
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	policyRepo := repository.NewPolicyRepository(pool)
	policy, err := policyRepo.GetAllocationPolicy(ctx, mc)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(policy, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	fmt.Println(string(jsonBytes))

	return nil
}

func PolicySetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <model-category>",
		Short: "Store an allocation policy for a model category",
		Long:  "Store an allocation policy for a model category from a JSON file (or stdin with -f -)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicySet,
	}

	cmd.Flags().StringP("file", "f", "", "Path to the policy JSON file (use - for stdin)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mc := domain.ModelCategory(args[0])
	if !domain.IsValidModelCategory(mc) {
		return fmt.Errorf("invalid model category %q (expected small, medium or large)", args[0])
	}

	path, _ := cmd.Flags().GetString("file")
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy domain.AllocationPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("failed to parse policy JSON: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	policyRepo := repository.NewPolicyRepository(pool)
	if err := policyRepo.Upsert(ctx, mc, policy); err != nil {
		return fmt.Errorf("failed to store policy: %w", err)
	}

	fmt.Printf("Policy stored for model category %s\n", mc)
	return nil
}

func PolicyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model-category>",
		Short: "Delete the stored allocation policy for a model category",
		Long:  "Delete the stored allocation policy for a model category, reverting it to the built-in default",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyDelete,
	}
}

func runPolicyDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mc := domain.ModelCategory(args[0])
	if !domain.IsValidModelCategory(mc) {
		return fmt.Errorf("invalid model category %q (expected small, medium or large)", args[0])
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	policyRepo := repository.NewPolicyRepository(pool)
	if err := policyRepo.Delete(ctx, mc); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	fmt.Printf("Policy deleted for model category %s (built-in default now applies)\n", mc)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
