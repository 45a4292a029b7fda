package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imeidesk/internal/config"
	"imeidesk/internal/imei"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <imei>",
	Short: "Verify an identifier against the registry and exit",
	Long: `Verify a single IMEI against the configured registry without starting
the TUI. The identifier passes through the same normalizer and validator
as interactive input, so dashes and spaces are fine:

  imeidesk verify 358879-09-876543-2

Prints the registration record when the device is known, or "not
registered" when it is not. Exits non-zero when verification itself
fails (bad identifier, unreachable registry).`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := config.ValidateRegistry(cfg.Registry); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	id := imei.Normalize(args[0])
	if err := imei.Validate(id); err != nil {
		return err
	}

	stack, err := newClientStack(cfg)
	if err != nil {
		return err
	}
	defer stack.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Registry.Timeout())
	defer cancel()

	result, err := stack.client.Verify(ctx, id)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", id, err)
	}

	if !result.Exists || result.Device == nil {
		fmt.Printf("%s: not registered\n", id)
		return nil
	}

	d := result.Device
	fmt.Printf("%s: registered\n", d.IMEI)
	fmt.Printf("  owner:      %s (%s)\n", d.Owner.Name, d.Owner.Identification)
	fmt.Printf("  company:    %s\n", d.Company.Name)
	fmt.Printf("  registered: %s\n", d.RegisteredAt.Format("2006-01-02"))
	return nil
}
