package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/httpclient"
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/stats"
)

const defaultURL = "http://localhost:3000"

type options struct {
	baseURL string
	timeout time.Duration
	token   string
}

func (o *options) client() *httpclient.Client {
	return httpclient.New("qrgate", o.baseURL, httpclient.Options{Timeout: o.timeout})
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "qrctl",
		Short:         "Command-line client for the qrgate matrix QR factorization API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	baseURL := os.Getenv("QRGATE_URL")
	if baseURL == "" {
		baseURL = defaultURL
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "url", baseURL, "base URL of the qrgate API, including any path prefix (env QRGATE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", httpclient.DefaultTimeout, "request timeout")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("QRGATE_TOKEN"), "bearer token (env QRGATE_TOKEN)")

	root.AddCommand(
		newLoginCmd(opts),
		newFactorizeCmd(opts),
		newOperationsCmd(opts),
		newValidateTokenCmd(opts),
	)
	return root
}

func newLoginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out api.TokenResponse
			req := api.LoginRequest{Email: email, Password: password}
			if err := opts.client().PostJSON(cmd.Context(), "/auth/login", "", req, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newFactorizeCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "factorize [matrix-json]",
		Short: "Compute the QR factorization and statistics of a matrix",
		Long: `Factorize posts a matrix to /matrix/qr and prints q, r and the
statistics as JSON. The matrix is given as a JSON array of rows, either
inline or with --file ("-" reads stdin).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}
			var m any
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("parsing matrix: %w", err)
			}
			// Catch shape errors before the round trip.
			if _, err := matrix.Validate(m); err != nil {
				return err
			}

			var out api.QRResponse
			if err := opts.client().PostJSON(cmd.Context(), "/matrix/qr", opts.token, api.QRRequest{Matrix: m}, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the matrix from a file")
	return cmd
}

func newOperationsCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "operations [qr-json]",
		Short: "Compute statistics for a {q, r} pair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}
			var req api.OperationsRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parsing q and r: %w", err)
			}

			var out stats.Statistics
			if err := opts.client().PostJSON(cmd.Context(), "/matrix/operations", opts.token, req, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read {q, r} from a file")
	return cmd
}

func newValidateTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-token [token]",
		Short: "Ask the authz service which user a token belongs to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := opts.token
			if len(args) == 1 {
				token = args[0]
			}
			if token == "" {
				return fmt.Errorf("no token given")
			}
			var out api.ValidateResponse
			if err := opts.client().PostJSON(cmd.Context(), "/auth/token/validate", token, nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.UserID)
			return nil
		},
	}
}

// readInput returns the inline argument, the --file contents, or stdin
// when file is "-".
func readInput(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, fmt.Errorf("give the input inline or with --file, not both")
	case len(args) == 1:
		return []byte(args[0]), nil
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, fmt.Errorf("no input given")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
