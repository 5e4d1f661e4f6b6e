package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apiclient "github.com/wayneindustries/resourcemgmt/pkg/api/client"
)

// manifest is the YAML document accepted by "wayne resource import".
type manifest struct {
	Resources []manifestResource `yaml:"resources"`
}

type manifestResource struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Status       string `yaml:"status"`
	Location     string `yaml:"location"`
	SerialNumber string `yaml:"serial_number"`
	Description  string `yaml:"description"`
}

func (m manifestResource) input() apiclient.CreateResourceInput {
	return apiclient.CreateResourceInput{
		Name:         strings.TrimSpace(m.Name),
		Type:         strings.TrimSpace(m.Type),
		Status:       strings.TrimSpace(m.Status),
		Location:     strings.TrimSpace(m.Location),
		SerialNumber: strings.TrimSpace(m.SerialNumber),
		Description:  strings.TrimSpace(m.Description),
	}
}

func parseManifest(r io.Reader) (manifest, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return manifest{}, errors.New("manifest is empty")
		}
		return manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Resources) == 0 {
		return manifest{}, errors.New("manifest lists no resources")
	}
	serials := make(map[string]int, len(m.Resources))
	for i, res := range m.Resources {
		if strings.TrimSpace(res.Name) == "" {
			return manifest{}, fmt.Errorf("resources[%d]: name is required", i)
		}
		if strings.TrimSpace(res.Type) == "" {
			return manifest{}, fmt.Errorf("resources[%d]: type is required", i)
		}
		serial := strings.TrimSpace(res.SerialNumber)
		if serial == "" {
			continue
		}
		if prev, ok := serials[serial]; ok {
			return manifest{}, fmt.Errorf("resources[%d]: serial_number %q duplicates resources[%d]", i, serial, prev)
		}
		serials[serial] = i
	}
	return m, nil
}

type importSummary struct {
	Created int
	Skipped int
	Failed  int
}

// importResources creates every manifest entry, skipping serial numbers that already exist.
func importResources(ctx context.Context, client *apiclient.Client, token string, m manifest, out io.Writer) importSummary {
	var summary importSummary
	for _, res := range m.Resources {
		created, err := client.CreateResource(ctx, token, res.input())
		if err != nil {
			var apiErr apiclient.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				summary.Skipped++
				fmt.Fprintf(out, "skipped %s: %s\n", res.Name, apiErr.Message)
				continue
			}
			summary.Failed++
			fmt.Fprintf(out, "failed %s: %v\n", res.Name, err)
			continue
		}
		summary.Created++
		fmt.Fprintf(out, "created %s (%s)\n", created.Name, created.ID)
	}
	return summary
}

func newResourceImportCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Create resources listed in a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			m, err := parseManifest(f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				for _, res := range m.Resources {
					fmt.Fprintf(out, "would create %s [%s] serial=%q\n", res.Name, res.Type, res.SerialNumber)
				}
				return nil
			}
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			summary := importResources(ctx, client, token, m, out)
			fmt.Fprintf(out, "%d created, %d skipped, %d failed\n", summary.Created, summary.Skipped, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d resources failed to import", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the manifest without calling the API")
	return cmd
}
