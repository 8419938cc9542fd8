package cmd

import (
	"fmt"

	"trading-journal/internal/tracker"

	"github.com/spf13/cobra"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account with --email, --username and --password. The profile
starts with the journal defaults from the config file.`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the journal settings",
	Long: `Show the journal settings. Any of --balance, --trade-value or --percent
changes them; the rest keep their stored values.`,
	Args: cobra.NoArgs,
	RunE: withSession(runSettings),
}

var (
	signupEmail     string
	settingsBalance float64
	settingsValue   float64
	settingsPercent float64
)

func init() {
	rootCmd.AddCommand(signupCmd, settingsCmd)

	signupCmd.Flags().StringVar(&signupEmail, "email", "", "e-mail address")

	f := settingsCmd.Flags()
	f.Float64Var(&settingsBalance, "balance", 0, "initial balance")
	f.Float64Var(&settingsValue, "trade-value", 0, "value of the first trade")
	f.Float64Var(&settingsPercent, "percent", 0, "target percent per trade")
}

func runSignup(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.shutdown()

	res, err := a.tracker().SignUp(cmd.Context(), signupEmail, username, password)
	if err != nil && !res.SignedIn {
		return err
	}

	msg := "Account created."
	if !res.SignedIn {
		msg = "Account created. Confirm the e-mail if asked, then sign in."
	}
	if err != nil {
		msg = fmt.Sprintf("Account created, but the journal could not be loaded: %s", tracker.Message(err))
	}
	return render(cmd.OutOrStdout(), outputFmt, res, kvTable([2]string{"Result", msg}))
}

func runSettings(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	s := t.Settings()
	f := cmd.Flags()
	if f.Changed("balance") || f.Changed("trade-value") || f.Changed("percent") {
		if f.Changed("balance") {
			s.InitialBalance = settingsBalance
		}
		if f.Changed("trade-value") {
			s.InitialTradeValue = settingsValue
		}
		if f.Changed("percent") {
			s.PercentTarget = settingsPercent
		}
		if err := t.SaveSettings(cmd.Context(), s); err != nil {
			return err
		}
	}

	return render(cmd.OutOrStdout(), outputFmt, s, kvTable(
		[2]string{"Initial balance", money(s.InitialBalance)},
		[2]string{"First trade value", money(s.InitialTradeValue)},
		[2]string{"Percent target", fmt.Sprintf("%g%%", s.PercentTarget)},
		[2]string{"Next trade value", money(t.CurrentTradeValue())},
	))
}
