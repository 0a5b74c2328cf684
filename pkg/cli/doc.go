/*
Package cli provides the output, exit-code and signal helpers used by the
vigil command.

Output Formatting:

Audit results, history records, impact reports and policies can be written
as text, JSON or CSV:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	if err := cli.WriteResult(os.Stdout, result, format); err != nil {
		return err
	}

Exit Codes:

A command returns cli.Exit(code) to end the process with a specific code
without printing an error. main maps any other error to exit code 1:

	if err := rootCmd.Execute(); err != nil {
		if !cli.Silent(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}

Signal Handling:

The first SIGINT or SIGTERM cancels the returned context. A second one
exits immediately with code 130:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
