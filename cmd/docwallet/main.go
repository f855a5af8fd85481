package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"docwallet/internal/app"
	"docwallet/internal/config"
	"docwallet/internal/wallet"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a WalletApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CreateDocument", "CreateBackup").
func newApp(operation string) (*app.WalletApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewWalletApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo when
// stdin is a terminal, or a single line otherwise.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseSlot accepts "principal", "secondary", "0" or "1".
func parseSlot(s string) (wallet.Slot, error) {
	switch strings.ToLower(s) {
	case "principal", "0":
		return wallet.SlotPrincipal, nil
	case "secondary", "1":
		return wallet.SlotSecondary, nil
	default:
		return 0, fmt.Errorf("%w: unknown slot %q (use principal or secondary)", wallet.ErrValidation, s)
	}
}

// parseDate reads a YYYY-MM-DD date as midnight UTC.
func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD: %q", wallet.ErrValidation, s)
	}
	return d, nil
}

func printDocument(d *wallet.DocumentRecord) {
	flags := ""
	if d.Archived {
		flags = "  [archived]"
	}
	fmt.Printf("%s  %-30s  expires %s  files:%d%s\n",
		d.ID,
		d.Name,
		d.ExpiryDate.Format("2006-01-02"),
		len(d.FileNames()),
		flags,
	)
}

var rootCmd = &cobra.Command{
	Use:          "docwallet",
	Short:        "Personal document wallet",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Documents Dir: %s\n", cfg.DocumentsDir)
		fmt.Printf("Index:         %s\n", cfg.IndexPath)
		fmt.Printf("Profile:       %s\n", cfg.ProfilePath)
		fmt.Printf("Backups Dir:   %s\n", cfg.BackupsDir)
		fmt.Printf("Database:      %s\n", cfg.Database.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:         %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// doc command
var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage documents",
}

var docAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, _ := cmd.Flags().GetString("file")
		secondary, _ := cmd.Flags().GetString("back")
		url, _ := cmd.Flags().GetString("url")
		description, _ := cmd.Flags().GetString("description")
		expires, _ := cmd.Flags().GetString("expires")
		archived, _ := cmd.Flags().GetBool("archived")
		move, _ := cmd.Flags().GetBool("move")

		in := wallet.DocumentInput{
			Name:        args[0],
			Description: description,
			URL:         url,
			Sources:     [wallet.MaxSlots]string{principal, secondary},
			Archived:    archived,
		}
		if expires != "" {
			d, err := parseDate(expires)
			if err != nil {
				return err
			}
			in.ExpiryDate = d
		}

		a, err := newApp("CreateDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.AddDocument(in, move)
		if err != nil {
			return fmt.Errorf("adding document: %w", err)
		}

		fmt.Printf("Added document %s\n", rec.ID)
		return nil
	},
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		archived, _ := cmd.Flags().GetBool("archived")
		expired, _ := cmd.Flags().GetBool("expired")

		a, err := newApp("ListDocuments")
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.ListDocuments(wallet.ListFilter{Query: query, ArchivedOnly: archived, ExpiredOnly: expired})
		if err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for i := range docs {
			printDocument(&docs[i])
		}
		return nil
	},
}

var docShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		d, files, err := a.GetDocument(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:          %s\n", d.ID)
		fmt.Printf("Name:        %s\n", d.Name)
		fmt.Printf("Description: %s\n", d.Description)
		fmt.Printf("URL:         %s\n", d.URL)
		fmt.Printf("Created:     %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Expires:     %s\n", d.ExpiryDate.Format("2006-01-02"))
		fmt.Printf("Archived:    %t\n", d.Archived)
		for _, f := range files {
			if f.Missing {
				fmt.Printf("%-10s   %s  [missing]\n", f.Slot, f.Name)
				continue
			}
			pages := ""
			if f.Info.Pages > 0 {
				pages = fmt.Sprintf("  %d pages", f.Info.Pages)
			}
			fmt.Printf("%-10s   %s  %s  %d bytes%s\n", f.Slot, f.Name, f.Info.Kind, f.Info.Size, pages)
		}
		return nil
	},
}

var docEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change document metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch wallet.DocumentPatch
		flags := cmd.Flags()
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			patch.Name = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("url") {
			v, _ := flags.GetString("url")
			patch.URL = &v
		}
		if flags.Changed("expires") {
			v, _ := flags.GetString("expires")
			d, err := parseDate(v)
			if err != nil {
				return err
			}
			patch.ExpiryDate = &d
		}
		if flags.Changed("archived") {
			v, _ := flags.GetBool("archived")
			patch.Archived = &v
		}

		a, err := newApp("UpdateDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.UpdateDocument(args[0], patch)
		if err != nil {
			return err
		}
		printDocument(d)
		return nil
	},
}

var docRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a document and its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.DeleteDocument(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Deleted document %s\n", res.Document.ID)
		for _, e := range res.FileErrors {
			fmt.Printf("warning: %v\n", e)
		}
		return nil
	},
}

var docExpiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "List documents expiring soon",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("ListExpiring")
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.ListExpiring(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Printf("Nothing expires within %d days.\n", days)
			return nil
		}
		for i := range docs {
			printDocument(&docs[i])
		}
		return nil
	},
}

// doc file command
var docFileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage document files",
}

var docFileReplaceCmd = &cobra.Command{
	Use:   "replace ID SLOT PATH",
	Short: "Put a new file into a slot",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := parseSlot(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("ReplaceFile")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.ReplaceFile(args[0], slot, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Replaced %s file of %s: %s\n", slot, d.ID, d.FileAt(slot))
		return nil
	},
}

var docFileRmCmd = &cobra.Command{
	Use:   "rm ID SLOT",
	Short: "Remove the file held in a slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := parseSlot(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("DeleteFile")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.DeleteFile(args[0], slot)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s file of %s\n", slot, d.ID)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		a, err := newApp("CreateBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.CreateBackup(encrypt)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Created %s (%d documents, %d bytes) in vault %s\n", b.Name, b.Documents, b.Size, b.Vault)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.ListBackups(limit)
		if err != nil {
			return err
		}

		if len(backups) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%s  %-40s  %-10s  %d docs  %d bytes  %s\n",
				b.CreatedAt.Format("2006-01-02 15:04:05"),
				b.Name,
				b.Vault,
				b.Documents,
				b.Size,
				b.Checksum[:12],
			)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE",
	Short: "Restore a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RestoreBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.NeedsPassphrase(args[0]) {
			passphrase, err = readPassphrase("Backup passphrase: ")
			if err != nil {
				return err
			}
		}

		res, err := a.RestoreBackup(args[0], passphrase)
		if err != nil {
			return err
		}

		fmt.Printf("Restored %d file(s) from %s\n", len(res.Extracted), res.Archive)
		if res.IndexRestored {
			fmt.Println("Index restored.")
		}
		if res.ProfileRestored {
			fmt.Println("Profile restored.")
		}
		for _, d := range res.Dangling {
			fmt.Printf("warning: document %s references missing %s file %s\n", d.DocumentID, d.Slot, d.FileName)
		}
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the user profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ShowProfile")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Profile()
		if err != nil {
			return err
		}
		for _, kv := range p.Fields() {
			fmt.Printf("%-16s %s\n", kv[0], kv[1])
		}
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a profile field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetProfile")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetProfileField(args[0], args[1])
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the index with the document folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		prune, _ := cmd.Flags().GetBool("prune")

		operation := "Check"
		if prune {
			operation = "PruneOrphans"
		}
		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Check()
		if err != nil {
			return err
		}

		fmt.Printf("%d document(s), %d file(s)\n", report.Documents, report.Files)
		for _, d := range report.Dangling {
			fmt.Printf("missing  %s  %s file %s\n", d.DocumentID, d.Slot, d.FileName)
		}
		for _, name := range report.Orphans {
			fmt.Printf("orphan   %s\n", name)
		}
		if report.Consistent() {
			fmt.Println("Index and folder agree.")
			return nil
		}

		if prune && len(report.Orphans) > 0 {
			pruned, err := a.PruneOrphans()
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d orphan file(s)\n", len(pruned))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backup encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("InitKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		pub, err := a.InitKeys(passphrase)
		if err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		if pub != "" {
			fmt.Printf("Public key: %s\n", pub)
		}
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect the backup vault",
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ValidateVault")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVault(); err != nil {
			return err
		}
		fmt.Println("Vault OK.")
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives held by the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListVaultArchives")
		if err != nil {
			return err
		}
		defer a.Close()

		archives, err := a.ListVaultArchives()
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			fmt.Println("No archives.")
			return nil
		}
		for _, ar := range archives {
			fmt.Printf("%-40s  %d bytes\n", ar.Name, ar.Size)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// doc subcommands
	docCmd.AddCommand(docAddCmd)
	docAddCmd.Flags().StringP("file", "f", "", "Principal file")
	docAddCmd.Flags().StringP("back", "b", "", "Secondary file (requires --file)")
	docAddCmd.Flags().StringP("url", "u", "", "Related web address")
	docAddCmd.Flags().StringP("description", "d", "", "Free text description")
	docAddCmd.Flags().StringP("expires", "e", "", "Expiry date YYYY-MM-DD (default: one year from now)")
	docAddCmd.Flags().Bool("archived", false, "Mark the document archived")
	docAddCmd.Flags().Bool("move", false, "Remove the picked files once stored")
	docCmd.AddCommand(docListCmd)
	docListCmd.Flags().StringP("query", "q", "", "Filter by name or description")
	docListCmd.Flags().Bool("archived", false, "Only archived documents")
	docListCmd.Flags().Bool("expired", false, "Only expired documents")
	docCmd.AddCommand(docShowCmd)
	docCmd.AddCommand(docEditCmd)
	docEditCmd.Flags().String("name", "", "New name")
	docEditCmd.Flags().String("description", "", "New description")
	docEditCmd.Flags().String("url", "", "New web address")
	docEditCmd.Flags().String("expires", "", "New expiry date YYYY-MM-DD")
	docEditCmd.Flags().Bool("archived", false, "Archived flag")
	docCmd.AddCommand(docRmCmd)
	docCmd.AddCommand(docExpiringCmd)
	docExpiringCmd.Flags().Int("days", 30, "Look-ahead window in days")
	docCmd.AddCommand(docFileCmd)
	docFileCmd.AddCommand(docFileReplaceCmd)
	docFileCmd.AddCommand(docFileRmCmd)

	// backup subcommands
	backupCmd.AddCommand(backupCreateCmd)
	backupCreateCmd.Flags().Bool("encrypt", false, "Encrypt the archive with the backup key")
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().IntP("limit", "n", 20, "Maximum number of backups to show")
	backupCmd.AddCommand(backupRestoreCmd)

	// profile subcommands
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)

	keysCmd.AddCommand(keysInitCmd)

	vaultCmd.AddCommand(vaultCheckCmd)
	vaultCmd.AddCommand(vaultListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("prune", false, "Delete orphan files")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(vaultCmd)
}
