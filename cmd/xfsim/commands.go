package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ironwood-labs/xfsim/pkg/xfs"
)

// parseSize accepts a plain byte count or a count suffixed with KB/MB/GB
// (binary multiples), e.g. "100MB" or "104857600".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		mult = 1024
		s = strings.TrimSuffix(s, "KB")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}

// resolveInode accepts either a numeric inode number or a file name.
func resolveInode(arg string) (uint64, error) {
	if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return n, nil
	}
	ino, err := fs.InodeByName(arg)
	if err != nil {
		return 0, fmt.Errorf("no such file %q: %w", arg, err)
	}
	return ino.Num, nil
}

// plainTable renders vals as an unbordered grid, skipping the first row
// (a placeholder of the right column count, matching how the rest of
// this tree's tables are built).
func plainTable(w io.Writer, vals [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for i := 1; i < len(vals); i++ {
		table.Append(vals[i])
	}
	table.Render()
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <size>",
		Short: "Format a new device (e.g. \"format 100MB\")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[0])
			if err != nil {
				return err
			}
			if err := fs.Format(size); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "formatted %d bytes across %d allocation groups\n", size, xfs.NumAGs)
			return nil
		},
	}
}

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount",
		Short: "Start the journal worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fs.Mount(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mounted")
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			num, err := fs.CreateFile(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created inode %d\n", num)
			return nil
		},
	}
}

func newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <name|inode> <data>",
		Short: "Write data to a file at offset 0",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := resolveInode(args[0])
			if err != nil {
				return err
			}
			n, err := fs.Write(num, []byte(args[1]), 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes\n", n)
			return nil
		},
	}
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <name|inode>",
		Short: "Read the full contents of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := resolveInode(args[0])
			if err != nil {
				return err
			}
			ino, err := fs.Inode(num)
			if err != nil {
				return err
			}
			buf := make([]byte, ino.Size)
			n, err := fs.Read(num, buf, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(buf[:n]))
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name|inode>",
		Short: "Print an inode's metadata and extent list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := resolveInode(args[0])
			if err != nil {
				return err
			}
			ino, err := fs.Inode(num)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "inode %d: size=%d extents=%d\n", ino.Num, ino.Size, ino.ExtentCount)
			rows := [][]string{{"", "", "", ""}}
			for i := 0; i < ino.ExtentCount; i++ {
				e := ino.Extents[i]
				rows = append(rows, []string{
					strconv.FormatInt(e.LogicalStart, 10),
					strconv.Itoa(e.AG),
					strconv.FormatInt(e.PhysicalStart, 10),
					strconv.FormatInt(e.BlockCount, 10),
				})
			}
			plainTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List every file in the inode table",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][]string{{"", ""}}
			for _, e := range fs.ListFiles() {
				rows = append(rows, []string{strconv.FormatUint(e.Num, 10), e.Name})
			}
			plainTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	return cmd
}

func newSuperblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "superblock",
		Short: "Print the superblock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "magic=0x%x blocksize=%d agcount=%d\n",
				xfs.SBMagicNumber, xfs.BlockSize, xfs.NumAGs)
			return nil
		},
	}
}

func newAGFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agf <id>",
		Short: "Print an AG's free-space header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			agf, err := fs.AGSummary(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ag %d: length=%d free=%d longest=%d\n",
				id, agf.Length, agf.FreeBlocks, agf.Longest)
			return nil
		},
	}
}

func newAGICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agi <id>",
		Short: "Print an AG's inode header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ag %d inode header (agi) is informational only in this simulator\n", id)
			return nil
		},
	}
}

func newAGSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ag_summary",
		Short: "Print free/used block counts for every AG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][]string{{"", "", ""}}
			for ag := 0; ag < xfs.NumAGs; ag++ {
				agf, err := fs.AGSummary(ag)
				if err != nil {
					return err
				}
				used := agf.Length - agf.FreeBlocks
				rows = append(rows, []string{
					strconv.Itoa(ag),
					strconv.Itoa(int(agf.FreeBlocks)),
					strconv.Itoa(int(used)),
				})
			}
			plainTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the journal's current queue length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "queue length: %d\n", fs.JournalQueueLength())
			return nil
		},
	}
}

func newBarrierTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "barrier_test",
		Short: "Enqueue a few journal entries, then commit a barrier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for i := 0; i < 3; i++ {
				_ = fs.AddJournalItem([]byte(fmt.Sprintf("barrier_test-%d", i)))
			}
			green := color.New(color.FgGreen).SprintFunc()
			if err := fs.CommitBarrier(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("barrier committed: all prior entries flushed"))
			return nil
		},
	}
}
