// Package cli provides a small command-line interface (CLI) framework for
// Go applications: command registration, flag parsing (including aliases),
// subcommands, and generated usage/help text.
//
// Example:
//
//	app := cli.NewCLI()
//	app.AddVersion("1.0.0")
//	app.AddCommand(cli.NewCommand("greet", "say hello", "1.0.0", func(ctx *cli.Context) error {
//	    name, _ := ctx.GetFlag("name")
//	    fmt.Println("Hello,", name)
//	    return nil
//	}))
//
//	if err := app.Execute(); err != nil {
//	    os.Exit(1)
//	}
package cli
