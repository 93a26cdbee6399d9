// Command fleetctl resolves bundle-group manifests and applies them under
// a cluster-backed distributed lock. It is a thin wiring layer over the
// lock and manifest packages; the actual custom-resource client and
// release-installation engine are external collaborators.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"oss.nandlabs.io/fleet/cli"
	"oss.nandlabs.io/fleet/clusterapi"
	"oss.nandlabs.io/fleet/config"
	"oss.nandlabs.io/fleet/l3"
	"oss.nandlabs.io/fleet/lock"
	"oss.nandlabs.io/fleet/manifest"
)

var logger = l3.Get()

const version = "0.1.0"

func main() {
	app := cli.NewCLI()
	app.AddVersion(version)
	app.AddCommand(resolveCommand())
	app.AddCommand(deployCommand())

	if err := app.Execute(); err != nil {
		logger.ErrorF("fleetctl: %v", err)
		os.Exit(1)
	}
}

func resolveCommand() *cli.Command {
	cmd := cli.NewCommand("resolve", "resolve a manifest document stream and print its bundle graph", version, func(ctx *cli.Context) error {
		file, _ := ctx.GetFlag("file")
		target, _ := ctx.GetFlag("target")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		resolver, err := loadResolver(file, target)
		if err != nil {
			return err
		}
		return printResolved(resolver)
	})
	cmd.Flags = []*cli.Flag{
		{Name: "file", Usage: "path to a YAML document stream containing bundles, bundle groups and a manifest", Default: ""},
		{Name: "target", Usage: "manifest name to resolve, when the stream contains more than one", Default: ""},
	}
	return cmd
}

func deployCommand() *cli.Command {
	cmd := cli.NewCommand("deploy", "resolve a manifest and apply it while holding the deployment lock", version, func(ctx *cli.Context) error {
		file, _ := ctx.GetFlag("file")
		target, _ := ctx.GetFlag("target")
		lockName, _ := ctx.GetFlag("lock-name")
		clusterURL, _ := ctx.GetFlag("cluster-url")
		rawData, _ := ctx.GetFlag("data")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		if lockName == "" {
			lockName = "deploy"
		}

		api := clusterAPIFor(clusterURL)
		coordinator := lock.New(api, lock.LoadConfig())

		return coordinator.RunWithLock(context.Background(), lockName, parseLockData(rawData), func(ctx context.Context) error {
			resolver, err := loadResolver(file, target)
			if err != nil {
				return err
			}
			return printResolved(resolver)
		})
	})
	cmd.Flags = []*cli.Flag{
		{Name: "file", Usage: "path to a YAML document stream containing bundles, bundle groups and a manifest", Default: ""},
		{Name: "target", Usage: "manifest name to resolve, when the stream contains more than one", Default: ""},
		{Name: "lock-name", Usage: "name of the deployment lock to hold while applying", Default: "deploy"},
		{Name: "cluster-url", Usage: "base URL of the cluster API; empty uses an in-memory cluster for local testing", Default: ""},
		{Name: "data", Usage: "comma-separated key=value pairs merged into the lock's user data", Default: ""},
	}
	return cmd
}

// parseLockData turns a "k1=v1,k2=v2" flag value into the map that Coordinator.Acquire
// stores under the lock's data section, using config.Attributes as the intermediate
// holder so the same merge/coercion semantics apply here as anywhere else attributes
// are built up from loose string input.
func parseLockData(raw string) map[string]interface{} {
	attrs := &config.MapAttributes{}
	if raw == "" {
		return attrs.AsMap()
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		attrs.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return attrs.AsMap()
}

func clusterAPIFor(baseURL string) clusterapi.ClusterAPI {
	if baseURL == "" {
		logger.Info("no --cluster-url given, using an in-memory cluster")
		return clusterapi.NewMemoryClusterAPI()
	}
	return clusterapi.NewHTTPClusterAPI(baseURL, nil, nil)
}

func loadResolver(file, target string) (*manifest.Resolver, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	docs, err := manifest.LoadDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("load documents from %s: %w", file, err)
	}
	return manifest.NewResolver(docs, target)
}

func printResolved(resolver *manifest.Resolver) error {
	prefix, err := resolver.ReleasePrefix()
	if err != nil {
		return err
	}
	groups, err := resolver.GroupDocuments()
	if err != nil {
		return err
	}

	fmt.Printf("release prefix: %s\n", prefix)
	for _, group := range groups {
		data := group["data"].(map[string]interface{})
		meta := group["metadata"].(map[string]interface{})
		fmt.Printf("bundle group %s:\n", meta["name"])
		bundles, _ := data["bundles"].([]interface{})
		for _, b := range bundles {
			bundle, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			meta, _ := bundle["metadata"].(map[string]interface{})
			fmt.Printf("  - %v\n", meta["name"])
		}
	}
	return nil
}
