/*
Package cli provides helpers shared by the kairo commands: output
formatting, exit codes and signal handling.

Output Formatting:

Commands accept --format text|json. Results that implement TextRenderer
control their own text layout; everything else falls back to %v.

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Exit Codes:

A blocked check or a failing rule test returns an *ExitError so main can
exit with a distinct status:

	os.Exit(cli.ExitCode(rootCmd.Execute()))

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
