package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/pathutil"
	"github.com/kozaktomas/face-sorter/internal/registry"
	"github.com/kozaktomas/face-sorter/internal/staging"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect or rebuild the known faces registry",
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the people and reference images in the registry file",
	Args:  cobra.NoArgs,
	RunE:  runRegistryShow,
}

var registryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the registry file from the reference images",
	Long: `Rebuild embeds every image directly inside the reference folder, names it
by the file stem up to the first underscore, and overwrites the registry file.
Images without a detectable face are left out.`,
	Args: cobra.NoArgs,
	RunE: runRegistryRebuild,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryRebuildCmd)

	for _, c := range []*cobra.Command{registryShowCmd, registryRebuildCmd} {
		c.Flags().String("reference", "", "Folder with reference images of known people")
		c.Flags().Bool("json", false, "Output as JSON")
		if err := c.MarkFlagRequired("reference"); err != nil {
			panic(err)
		}
	}
}

type registryEntry struct {
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

func runRegistryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ref, err := pathutil.Normalize(mustGetString(cmd, "reference"), "")
	if err != nil {
		return fmt.Errorf("invalid reference folder: %w", err)
	}

	file := registry.Path(ref, cfg.Pipeline.RegistryFile)
	rec, err := registry.ReadRecord(file)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no registry at %s, run 'face-sorter registry rebuild' first", file)
	}
	if err != nil {
		return err
	}

	entries := make([]registryEntry, 0, len(rec))
	for name, images := range rec {
		entries = append(entries, registryEntry{Name: name, Images: images})
	}
	slices.SortFunc(entries, func(a, b registryEntry) int { return strings.Compare(a.Name, b.Name) })

	if mustGetBool(cmd, "json") {
		return outputJSON(entries)
	}
	printRegistry(file, entries)
	return nil
}

func runRegistryRebuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ref, err := pathutil.Normalize(mustGetString(cmd, "reference"), "")
	if err != nil {
		return fmt.Errorf("invalid reference folder: %w", err)
	}

	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	area, err := staging.New(cfg.Pipeline.StagingDir, uuid.NewString())
	if err != nil {
		return err
	}
	defer func() { _ = area.Remove() }()

	loader := registry.NewLoader(newCollaborator(cfg).Embedder, newProcessor(cfg, logger), registry.Options{
		StagingDir:    area.Path(),
		Workers:       cfg.Pipeline.WorkerCount(),
		UnknownFolder: cfg.Pipeline.UnknownFolder,
	}, logger)

	ids, err := loader.Bootstrap(ctx, ref)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return errors.New("rebuild interrupted, registry left unchanged")
	}
	if len(ids) == 0 {
		return fmt.Errorf("no faces found in the reference images in %s", ref)
	}

	file := registry.Path(ref, cfg.Pipeline.RegistryFile)
	if err := registry.Save(ids, ref, file); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	entries := make([]registryEntry, 0, len(ids))
	for _, name := range ids.Names() {
		entries = append(entries, registryEntry{Name: name, Images: ids[name].Images})
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(entries)
	}
	printRegistry(file, entries)
	return nil
}

func printRegistry(file string, entries []registryEntry) {
	fmt.Printf("Registry: %s\n", file)
	if len(entries) == 0 {
		fmt.Println("No known people")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, strconv.Itoa(len(e.Images)), strings.Join(e.Images, ", ")})
	}
	fmt.Println(renderTable([]string{"NAME", "IMAGES", "FILES"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
}
