package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/portfolio"
)

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage the site's profile, projects and certificates",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "load <file.yaml>",
			Short: "Replace the site content from a YAML file",
			Long:  "Validate a content file and replace the stored profile, projects and certificates with it. Writes to the local database.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runContentLoad(cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "projects [id|slug]",
			Short: "List projects, or show one",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runProjects(cmd.Context(), cmd.OutOrStdout(), newAPIClient(), args)
			},
		},
		&cobra.Command{
			Use:   "certificates",
			Short: "List certificates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCertificates(cmd.Context(), cmd.OutOrStdout(), newAPIClient())
			},
		},
	)

	return cmd
}

func runContentLoad(out io.Writer, path string) error {
	content, err := portfolio.LoadContent(path)
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	svc := portfolio.NewService(portfolio.NewRepository(database))
	if err := svc.Load(content); err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	if isJSON() {
		return printJSON(out, map[string]int{
			"projects":     len(content.Projects),
			"certificates": len(content.Certificates),
		})
	}
	fmt.Fprintf(out, "✓ Loaded %d projects and %d certificates for %s.\n",
		len(content.Projects), len(content.Certificates), content.Profile.Name)
	return nil
}

// contentReader is the part of the API client used to read site content.
type contentReader interface {
	ListProjects(ctx context.Context) ([]*portfolio.Project, error)
	GetProject(ctx context.Context, ref string) (*portfolio.Project, error)
	ListCertificates(ctx context.Context) ([]*portfolio.Certificate, error)
}

func runProjects(ctx context.Context, out io.Writer, c contentReader, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		p, err := c.GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(out, p)
		}
		printProject(out, p)
		return nil
	}

	projects, err := c.ListProjects(ctx)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(out, projects)
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tTITLE\tTECH")
	for _, p := range projects {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Slug, truncate(p.Title, 40), strings.Join(p.TechStack, ", "))
	}
	return w.Flush()
}

func printProject(w io.Writer, p *portfolio.Project) {
	fmt.Fprintf(w, "Project #%d (%s)\n", p.ID, p.Slug)
	fmt.Fprintf(w, "  Title:   %s\n", p.Title)
	if p.Link != "" {
		fmt.Fprintf(w, "  Live:    %s\n", p.Link)
	}
	if p.IsPrivate() {
		fmt.Fprintln(w, "  Source:  private")
	} else if p.Github != "" {
		fmt.Fprintf(w, "  Source:  %s\n", p.Github)
	}
	fmt.Fprintf(w, "  Tech:    %d technologies\n", len(p.TechStack))
	for _, t := range p.TechStack {
		fmt.Fprintf(w, "    - %s\n", t)
	}
	fmt.Fprintf(w, "  Features: %d\n", len(p.Features))
	for _, f := range p.Features {
		fmt.Fprintf(w, "    - %s\n", f)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", p.Description)
	}
}

func runCertificates(ctx context.Context, out io.Writer, c contentReader) error {
	if ctx == nil {
		ctx = context.Background()
	}

	certs, err := c.ListCertificates(ctx)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(out, certs)
	}
	if len(certs) == 0 {
		fmt.Fprintln(out, "No certificates.")
		return nil
	}
	for _, cert := range certs {
		fmt.Fprintf(out, "#%d %s\n  %s\n", cert.ID, cert.Title, cert.Img)
	}
	return nil
}
