package wallet

// BackupTargets lists what goes into a backup archive.
type BackupTargets struct {
	Folder      string // document folder; its files land at the archive root
	IndexFile   string
	ProfileFile string
}

// Packager bundles backup targets into an archive and unpacks it again.
type Packager interface {
	// Create writes an archive of targets to dest. Missing JSON files are
	// skipped; a missing folder is an error. Returns the number of entries.
	Create(targets BackupTargets, dest string) (int, error)

	// Extract unpacks archive into destFolder and returns the extracted
	// names relative to destFolder.
	Extract(archive, destFolder string) ([]string, error)
}
