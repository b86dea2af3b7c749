package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/skyarchive/depot/config"
	"github.com/skyarchive/depot/dataset"
	"github.com/skyarchive/depot/watch"
)

func load(configDir string) (*config.Config, error) {
	return config.NewLoader(slog.Default()).Load(configDir)
}

func validateCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and run every structural check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(*configDir)
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d storage classes, %d templates, %d datastores\n",
				len(cfg.Registry.Names()), cfg.Templates.Len(), len(cfg.Datastores))
			return nil
		},
	}
}

func classesCmd(configDir *string) *cobra.Command {
	var resolve string

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List storage classes, or show one inheritance-resolved entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(*configDir)
			if err != nil {
				return err
			}

			if resolve == "" {
				for _, name := range cfg.Registry.Names() {
					sc, _ := cfg.Registry.Get(name)
					marker := ""
					if sc.InheritsFrom != "" {
						marker = " < " + sc.InheritsFrom
					}
					fmt.Printf("%s%s\n", name, marker)
				}
				return nil
			}

			sc, err := cfg.Registry.Resolve(resolve)
			if err != nil {
				return err
			}
			fmt.Printf("name:      %s\n", sc.Name)
			fmt.Printf("pytype:    %s\n", sc.PyType)
			if sc.InheritsFrom != "" {
				fmt.Printf("inherits:  %s\n", sc.InheritsFrom)
			}
			if sc.Assembler != "" {
				fmt.Printf("assembler: %s\n", sc.Assembler)
			}
			if len(sc.Parameters) > 0 {
				fmt.Printf("parameters: %s\n", strings.Join(sc.Parameters, ", "))
			}
			for _, comp := range sc.ComponentNames() {
				fmt.Printf("component %s: %s\n", comp, sc.Components[comp])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resolve, "resolve", "", "resolve one class through its inheritance chain")
	return cmd
}

// parseRef builds a dataset reference from CLI arguments: a dataset-type
// name, a storage-class name, and key=value identity fields. Integer
// values are coerced so padded placeholders render.
func parseRef(typeName, storageClass string, fields []string) (dataset.Ref, error) {
	dataID := dataset.DataID{}
	var dims []string
	for _, kv := range fields {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return dataset.Ref{}, fmt.Errorf("identity field %q is not key=value", kv)
		}
		if n, err := strconv.Atoi(v); err == nil {
			dataID[k] = n
		} else {
			dataID[k] = v
		}
		dims = append(dims, k)
	}
	t := dataset.NewType(typeName, dims, storageClass)
	run, _ := dataID["run"].(string)
	return dataset.NewRef(t, dataID, run), nil
}

func renderCmd(configDir *string) *cobra.Command {
	var storageClass string

	cmd := &cobra.Command{
		Use:   "render <datasetType> [field=value...]",
		Short: "Render the file path a dataset would be stored under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(*configDir)
			if err != nil {
				return err
			}
			ref, err := parseRef(args[0], storageClass, args[1:])
			if err != nil {
				return err
			}
			ds, err := cfg.SelectDatastore(ref)
			if err != nil {
				return err
			}
			path, err := cfg.PathFor(ds, ref)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&storageClass, "storage-class", "", "storage class of the dataset type")
	return cmd
}

func lookupCmd(configDir *string) *cobra.Command {
	var storageClass string

	cmd := &cobra.Command{
		Use:   "lookup <datasetType> [field=value...]",
		Short: "Show which datastore, template and formatter apply to a dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(*configDir)
			if err != nil {
				return err
			}
			ref, err := parseRef(args[0], storageClass, args[1:])
			if err != nil {
				return err
			}

			ds, err := cfg.SelectDatastore(ref)
			if err != nil {
				return err
			}
			fmt.Printf("datastore: %s (%s)\n", ds.Name, ds.Cls)

			if tmpl, err := cfg.TemplateFor(ds, ref); err == nil {
				fmt.Printf("template:  %s\n", tmpl)
			} else {
				fmt.Printf("template:  %v\n", err)
			}
			if formatter, err := cfg.FormatterFor(ds, ref); err == nil {
				fmt.Printf("formatter: %s\n", formatter)
			} else {
				fmt.Printf("formatter: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&storageClass, "storage-class", "", "storage class of the dataset type")
	return cmd
}

func watchCmd(configDir *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate the configuration whenever its documents change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *configDir == "" {
				return fmt.Errorf("watch requires --config")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			watcher, err := watch.NewWatcher(watch.WatcherConfig{
				Dir:     *configDir,
				Logger:  slog.Default(),
				Metrics: watch.NewMetrics(registry),
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()

			if listen != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(listen, mux); err != nil {
						slog.Error("Metrics server failed", "error", err)
						os.Exit(1)
					}
				}()
				fmt.Printf("metrics on %s/metrics\n", listen)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-watcher.Events():
					if ev.Err != nil {
						fmt.Printf("invalid: %v\n", ev.Err)
					} else {
						fmt.Printf("ok: %d storage classes, %d datastores\n",
							len(ev.Config.Registry.Names()), len(ev.Config.Datastores))
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve prometheus metrics on this address")
	return cmd
}
