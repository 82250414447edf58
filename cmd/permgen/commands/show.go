package commands

import (
	"fmt"
	"io"
	"strings"

	"permgen/lib/htmlutil"
	"permgen/lib/permdoc"
	"permgen/lib/refpage"
	"permgen/lib/splice"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	showSource            string
	showFormat            string
	showIncludeDeprecated bool
)

func init() {
	for _, cmd := range []*cobra.Command{listCmd, dangerousCmd, inspectCmd} {
		cmd.Flags().StringVar(&showSource, "source", "", "URL or saved html file to read. (default from config)")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{listCmd, dangerousCmd} {
		cmd.Flags().StringVar(&showFormat, "format", "table", "Output format, one of: table, java.")
	}
	listCmd.Flags().BoolVar(&showIncludeDeprecated, "include-deprecated", false, "Keep permissions the reference marks as deprecated.")
}

func loadDocument(cmd *cobra.Command, fallback string) (*goquery.Document, error) {
	location := showSource
	if location == "" {
		location = fallback
	}
	client, err := refpage.NewClient(config.clientOptions())
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Document(cmd.Context(), location)
}

func checkFormat() error {
	switch showFormat {
	case "table", "java":
		return nil
	}
	return fmt.Errorf("unknown format %q, expected table or java", showFormat)
}

func renderTable(out io.Writer, header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: len(header), WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Render()
}

var listCmd = &cobra.Command{
	Use:   "list [--source <url|file>] [--format table|java]",
	Short: "Prints every permission of the reference page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		doc, err := loadDocument(cmd, config.ReferenceUrl)
		if err != nil {
			return err
		}

		entries, err := permdoc.Extractor{
			IncludeDeprecated: includeDeprecated(cmd, showIncludeDeprecated),
		}.Permissions(cmd.Context(), doc)
		if err != nil {
			return err
		}

		if showFormat == "java" {
			fmt.Fprint(cmd.OutOrStdout(), "  "+splice.Listing(entries).Text)
			return nil
		}

		rows := make([]table.Row, len(entries))
		for i, e := range entries {
			desc := strings.ReplaceAll(e.Description, `\"`, `"`)
			if e.Deprecated {
				desc = "(deprecated) " + desc
			}
			rows[i] = table.Row{i + 1, e.Name, desc}
		}
		renderTable(cmd.OutOrStdout(), table.Row{"#", "Permission", "Description"}, rows)
		return nil
	},
}

var dangerousCmd = &cobra.Command{
	Use:   "dangerous [--source <url|file>] [--format table|java]",
	Short: "Prints the permissions with protection level dangerous.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(); err != nil {
			return err
		}
		fallback := config.DangerousUrl
		if fallback == "" {
			fallback = config.ReferenceUrl
		}
		doc, err := loadDocument(cmd, fallback)
		if err != nil {
			return err
		}

		names, strategy, err := permdoc.Extractor{}.Dangerous(cmd.Context(), doc)
		if err != nil {
			return err
		}

		if showFormat == "java" {
			fmt.Fprint(cmd.OutOrStdout(), "  "+splice.Dangerous(names).Text)
			return nil
		}

		rows := make([]table.Row, len(names))
		for i, name := range names {
			rows[i] = table.Row{i + 1, name}
		}
		renderTable(cmd.OutOrStdout(), table.Row{"#", fmt.Sprintf("Permission (%s)", strategy.Name())}, rows)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <PERMISSION> [--source <url|file>]",
	Short: "Prints the reference documentation of one permission as markdown.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(cmd, config.ReferenceUrl)
		if err != nil {
			return err
		}

		detail, err := permdoc.Detail(doc, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), htmlutil.Markdown(detail))
		return nil
	},
}
