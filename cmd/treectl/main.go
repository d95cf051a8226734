package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"foldertree/internal/config"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/services"
	"foldertree/internal/events"
	"foldertree/internal/repository/sqlstore"
	"foldertree/internal/service/foldertree"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	kingpin.CommandLine.HelpFlag.Short('h')
	kingpin.CommandLine.Help = "Inspect and maintain virtual folder trees."

	contextID := kingpin.Flag("context", "context id").Short('c').Default("1").Int()
	treeID := kingpin.Flag("tree", "tree id").Short('t').Default("1").Int()
	userID := kingpin.Flag("user", "user id").Short('u').Default("0").Int()
	archive := kingpin.Flag("archive", "operate on the backup tables").Bool()

	kingpin.Command("schema", "create missing folder tree tables")

	lsCmd := kingpin.Command("ls", "list the children of a folder in display order")
	lsParent := lsCmd.Arg("parent", "parent folder id").Default(models.RootID).String()
	lsLocale := lsCmd.Flag("locale", "locale used to order names").String()

	mkCmd := kingpin.Command("mk", "create a folder")
	mkID := mkCmd.Arg("id", "folder id").Required().String()
	mkParent := mkCmd.Arg("parent", "parent folder id").Required().String()
	mkName := mkCmd.Arg("name", "folder name").Required().String()

	rmCmd := kingpin.Command("rm", "delete a folder")
	rmID := rmCmd.Arg("id", "folder id").Required().String()
	rmRecursive := rmCmd.Flag("recursive", "delete the whole subtree").Short('r').Bool()
	rmBackup := rmCmd.Flag("backup", "copy deleted rows into the backup tables").Bool()
	rmHard := rmCmd.Flag("hard", "delete this folder only, in its own transaction").Bool()

	mvCmd := kingpin.Command("mv", "change a folder identifier and rewrite its descendants")
	mvOld := mvCmd.Arg("old", "current folder id").Required().String()
	mvNew := mvCmd.Arg("new", "new folder id").Required().String()

	kingpin.Command("dedupe", "remove folders whose name repeats under the same parent")

	command := kingpin.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx := context.Background()
	db, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseReadURL, sqlstore.PoolConfig{
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger.Debug("database connected",
		"driver", cfg.DatabaseDriver,
		"dialect", db.Dialect.String(),
		"table_prefix", cfg.TablePrefix,
	)

	tables := sqlstore.NewTableNames(cfg.TablePrefix)
	svc := newService(cfg, db, tables, logger)

	scope := models.ScopeKey{ContextID: *contextID, TreeID: *treeID, UserID: *userID}
	if *archive {
		scope = scope.Backup()
	}

	switch command {
	case "schema":
		err = sqlstore.ApplySchema(ctx, db.Provider.DB(), tables)
		if err == nil {
			fmt.Println("schema ready")
		}
	case "ls":
		locale := cfg.Locale()
		if *lsLocale != "" {
			locale, err = language.Parse(*lsLocale)
			if err != nil {
				break
			}
		}
		err = runList(ctx, svc, scope, *lsParent, locale)
	case "mk":
		_, err = svc.CreateFolder(ctx, scope, &services.CreateFolderRequest{
			FolderID:   *mkID,
			ParentID:   *mkParent,
			Name:       *mkName,
			ModifiedBy: userID,
		})
	case "rm":
		err = runRemove(ctx, svc, scope, *rmID, *rmHard, models.DeleteOptions{
			Recursive: *rmRecursive,
			Backup:    *rmBackup,
		})
	case "mv":
		var node *models.FolderNode
		node, err = svc.UpdateFolder(ctx, scope, *mvOld, &services.UpdateFolderRequest{
			NewID:      mvNew,
			ModifiedBy: *userID,
		})
		if err == nil {
			fmt.Printf("%s -> %s\n", *mvOld, node.FolderID)
		}
	case "dedupe":
		err = runDedupe(ctx, svc, scope)
	}

	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		closeLog()
		db.Close()
		os.Exit(1)
	}
}

func newService(cfg *config.Config, db *sqlstore.Database, tables *sqlstore.TableNames, logger *slog.Logger) services.FolderTreeService {
	repoConfig := &sqlstore.RepositoryConfig{
		Provider: db.Provider,
		Tables:   tables,
		Dialect:  db.Dialect,
		Events:   events.NewLogSink(logger),
		Logger:   logger,
	}

	return foldertree.NewFolderTreeService(foldertree.Dependencies{
		Nodes:       sqlstore.NewNodeRepository(repoConfig),
		Permissions: sqlstore.NewPermissionRepository(repoConfig),
		Renamer:     sqlstore.NewRenameRepository(repoConfig),
		Deleter:     sqlstore.NewDeleteRepository(repoConfig),
		Duplicates:  sqlstore.NewDuplicateRepository(repoConfig, cfg.Locale()),
		TxManager:   sqlstore.NewTransactionManager(db.Provider, logger),
	}, cfg.Delimiter, logger)
}

func runList(ctx context.Context, svc services.FolderTreeService, scope models.ScopeKey, parentID string, locale language.Tag) error {
	ids, err := svc.ListChildren(ctx, scope, parentID, locale, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		folder, err := svc.GetFolder(ctx, scope, id)
		if err != nil {
			return err
		}
		fmt.Printf("%-32s %s\n", id, folder.Node.Name)
	}
	return nil
}

func runRemove(ctx context.Context, svc services.FolderTreeService, scope models.ScopeKey, folderID string, hard bool, opts models.DeleteOptions) error {
	if hard {
		deleted, err := svc.HardDeleteFolder(ctx, scope, folderID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: deleted=%t\n", folderID, deleted)
		return nil
	}

	outcome, err := svc.DeleteFolder(ctx, scope, folderID, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", folderID, outcome)
	return nil
}

func runDedupe(ctx context.Context, svc services.FolderTreeService, scope models.ScopeKey) error {
	removed, err := svc.ResolveDuplicates(ctx, scope)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Println("no duplicates")
		return nil
	}

	names := make([]string, 0, len(removed))
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: removed %s\n", name, strings.Join(removed[name], ", "))
	}
	return nil
}
