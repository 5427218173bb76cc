package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/school-intake-api/internal/repository"
	"github.com/noah-isme/school-intake-api/pkg/cache"
)

var (
	forgetParent string
	forgetName   string
)

// cacheCmd maintains the Redis folder cache.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the folder ID cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every cached folder ID",
	Args:  cobra.NoArgs,
	RunE:  runCachePurge,
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Drop one cached folder, e.g. after it was deleted or moved in storage",
	Args:  cobra.NoArgs,
	RunE:  runCacheForget,
}

func init() {
	cacheForgetCmd.Flags().StringVar(&forgetParent, "parent", "", "Parent folder ID (default STORAGE_ROOT_FOLDER_ID)")
	cacheForgetCmd.Flags().StringVar(&forgetName, "name", "", "Folder name (required)")
	_ = cacheForgetCmd.MarkFlagRequired("name")

	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
}

func openFolderCache(ctx context.Context) (*repository.FolderCacheRepository, error) {
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return repository.NewFolderCacheRepository(client, cfg.Storage.FolderCacheTTL, log), nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	folders, err := openFolderCache(ctx)
	if err != nil {
		return err
	}
	defer folders.Close() //nolint:errcheck

	removed, err := folders.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached folders\n", removed)
	return nil
}

func runCacheForget(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	folders, err := openFolderCache(ctx)
	if err != nil {
		return err
	}
	defer folders.Close() //nolint:errcheck

	parent := forgetParent
	if parent == "" {
		parent = cfg.Storage.RootFolderID
	}
	if err := folders.Forget(ctx, parent, forgetName); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", repository.FolderKey(parent, forgetName))
	return nil
}
