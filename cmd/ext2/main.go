// Command ext2 inspects ext2 filesystem images: metadata, directory
// listings and file contents.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ext2 "github.com/diskfs/go-ext2"
	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
)

var (
	flagSectorSize uint32
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ext2",
	Short: "inspect ext2 filesystem images",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Uint32Var(&flagSectorSize, "sector-size", 512, "sector size of the volume (512, 1024, 2048 or 4096)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(infoCmd, lsCmd, catCmd, statCmd)
}

// openFS opens the image read-only and parses the filesystem.
func openFS(path string) (*ext2.FileSystem, *volume.File, error) {
	size := sector.Size(flagSectorSize)
	if !size.Valid() {
		return nil, nil, fmt.Errorf("invalid sector size %d", flagSectorSize)
	}
	vol, err := volume.OpenFromPath(path, size, true)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{"image": path, "sector_size": flagSectorSize}).Debug("opened volume")

	fs, err := ext2.Read(vol)
	if err != nil {
		_ = vol.Close()
		return nil, nil, fmt.Errorf("could not read filesystem on %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"block_size":   fs.BlockSize(),
		"block_groups": fs.BlockGroupCount(),
	}).Debug("parsed filesystem")
	return fs, vol, nil
}

var infoCmd = &cobra.Command{
	Use:   "info IMAGE",
	Short: "print filesystem metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		fs, vol, err := openFS(args[0])
		if err != nil {
			return err
		}
		defer vol.Close()

		major, minor := fs.Version()
		fmt.Printf("uuid:          %s\n", fs.UUID())
		if fs.Label() != "" {
			fmt.Printf("label:         %s\n", fs.Label())
		}
		fmt.Printf("revision:      %d.%d\n", major, minor)
		fmt.Printf("block size:    %d\n", fs.BlockSize())
		fmt.Printf("inode size:    %d\n", fs.InodeSize())
		fmt.Printf("block groups:  %d\n", fs.BlockGroupCount())
		fmt.Printf("blocks:        %d (%d free)\n", fs.TotalBlockCount(), fs.FreeBlockCount())
		fmt.Printf("inodes:        %d (%d free)\n", fs.TotalInodeCount(), fs.FreeInodeCount())
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls IMAGE PATH",
	Short: "list a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		fs, vol, err := openFS(args[0])
		if err != nil {
			return err
		}
		defer vol.Close()

		in, err := fs.Open(args[1])
		if err != nil {
			return err
		}
		dir := in.Directory()
		if dir == nil {
			return fmt.Errorf("%s is not a directory", args[1])
		}
		for dir.Next() {
			entry := dir.Entry()
			child, err := fs.InodeNth(entry.Inode)
			if err != nil {
				return err
			}
			fmt.Printf("%8d %10d %s\n", entry.Inode, child.Size(), entry.Name)
		}
		return dir.Err()
	},
}

var catCmd = &cobra.Command{
	Use:   "cat IMAGE PATH",
	Short: "write a file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		fs, vol, err := openFS(args[0])
		if err != nil {
			return err
		}
		defer vol.Close()

		in, err := fs.Open(args[1])
		if err != nil {
			return err
		}
		data, err := in.ReadAll()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var statCmd = &cobra.Command{
	Use:   "stat IMAGE PATH",
	Short: "print an inode's metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		fs, vol, err := openFS(args[0])
		if err != nil {
			return err
		}
		defer vol.Close()

		in, err := fs.Open(args[1])
		if err != nil {
			return err
		}
		kind := "file"
		switch {
		case in.IsDir():
			kind = "directory"
		case in.IsSymlink():
			kind = "symlink"
		}
		fmt.Printf("inode:    %d\n", in.Number())
		fmt.Printf("type:     %s\n", kind)
		fmt.Printf("perm:     %04o\n", in.Perm())
		fmt.Printf("size:     %d\n", in.Size())
		fmt.Printf("links:    %d\n", in.HardLinks())
		fmt.Printf("uid/gid:  %d/%d\n", in.UID(), in.GID())
		fmt.Printf("sectors:  %d\n", in.Sectors())
		fmt.Printf("modified: %s\n", in.ModifyTime())
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
