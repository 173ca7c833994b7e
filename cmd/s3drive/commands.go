package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/objectfs/s3drive/internal/driver"
	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/mutation"
	"github.com/objectfs/s3drive/pkg/errors"
)

// commandFlags are accepted anywhere on the command line.
type commandFlags struct {
	recursive      bool
	start          int
	count          int
	name           string
	removeOriginal bool
	hash           string
}

func (f *commandFlags) register(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(&f.recursive, "recursive", "r", false, "recurse into subfolders (ls, rm)")
	flagSet.BoolVarP(&f.recursive, "parents", "p", false, "create intermediate folders (mkdir)")
	flagSet.IntVar(&f.start, "start", 0, "skip this many entries (ls)")
	flagSet.IntVar(&f.count, "count", 0, "return at most this many entries, 0 for all (ls)")
	flagSet.StringVar(&f.name, "name", "", "name of the uploaded file (put)")
	flagSet.BoolVar(&f.removeOriginal, "remove-original", false, "delete the local file after upload (put)")
	flagSet.StringVar(&f.hash, "hash", "", "hash algorithm reported by info")
}

type app struct {
	driver *driver.Driver
	fs     afero.Fs
	out    io.Writer
	flags  commandFlags
}

type command struct {
	minArgs int
	maxArgs int
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"ls":     {0, 1, (*app).list},
	"tree":   {0, 1, (*app).tree},
	"mkdir":  {1, 2, (*app).mkdir},
	"put":    {1, 2, (*app).put},
	"cat":    {1, 1, (*app).cat},
	"get":    {1, 2, (*app).get},
	"mv":     {2, 3, (*app).move},
	"cp":     {2, 3, (*app).copy},
	"rename": {2, 2, (*app).rename},
	"rm":     {1, 1, (*app).remove},
	"info":   {1, 1, (*app).info},
	"perms":  {1, 1, (*app).perms},
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return validation("unknown command %q", args[0])
	}
	rest := args[1:]
	if len(rest) < cmd.minArgs || len(rest) > cmd.maxArgs {
		return validation("%s: expected %d to %d arguments, got %d", args[0], cmd.minArgs, cmd.maxArgs, len(rest))
	}
	return cmd.run(a, ctx, rest)
}

func (a *app) list(ctx context.Context, args []string) error {
	folder := argOr(args, 0, identifier.Root)
	folders, err := a.driver.FoldersInFolder(ctx, folder, 0, 0, a.flags.recursive)
	if err != nil {
		return err
	}
	files, err := a.driver.FilesInFolder(ctx, folder, 0, 0, a.flags.recursive)
	if err != nil {
		return err
	}
	// Folders first, then files; --start and --count apply to the whole list.
	for _, id := range window(append(folders, files...), a.flags.start, a.flags.count) {
		fmt.Fprintln(a.out, id)
	}
	return nil
}

func window(ids []string, start, count int) []string {
	if start < 0 {
		start = 0
	}
	if start >= len(ids) {
		return nil
	}
	ids = ids[start:]
	if count > 0 && count < len(ids) {
		ids = ids[:count]
	}
	return ids
}

func (a *app) tree(ctx context.Context, args []string) error {
	folder := identifier.AsFolder(argOr(args, 0, identifier.Root))
	folders, err := a.driver.FoldersInFolder(ctx, folder, 0, 0, true)
	if err != nil {
		return err
	}
	files, err := a.driver.FilesInFolder(ctx, folder, 0, 0, true)
	if err != nil {
		return err
	}

	ids := append(folders, files...)
	sort.Strings(ids)
	base := identifier.Depth(identifier.Key(folder))
	fmt.Fprintln(a.out, folder)
	for _, id := range ids {
		depth := identifier.Depth(id) - base
		if !identifier.IsFolder(id) {
			depth++
		}
		name := identifier.Base(id)
		if identifier.IsFolder(id) {
			name += identifier.Separator
		}
		fmt.Fprintf(a.out, "%s%s\n", strings.Repeat("  ", depth), name)
	}
	return nil
}

func (a *app) mkdir(ctx context.Context, args []string) error {
	id, err := a.driver.CreateFolder(ctx, args[0], argOr(args, 1, identifier.Root), a.flags.recursive)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) put(ctx context.Context, args []string) error {
	id, err := a.driver.AddFile(ctx, args[0], argOr(args, 1, identifier.Root), a.flags.name, a.flags.removeOriginal)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) cat(ctx context.Context, args []string) error {
	data, err := a.driver.FileContents(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) == 1 {
		path, err := a.driver.FileForLocalProcessing(ctx, args[0], false)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, path)
		return nil
	}

	data, err := a.driver.FileContents(ctx, args[0])
	if err != nil {
		return err
	}
	dest := args[1]
	if info, err := a.fs.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, identifier.Base(args[0]))
	}
	if err := afero.WriteFile(a.fs, dest, data, 0644); err != nil {
		return errors.NewError(errors.ErrCodeLocalCopyFailed, "failed to write "+dest).WithCause(err)
	}
	fmt.Fprintln(a.out, dest)
	return nil
}

func (a *app) move(ctx context.Context, args []string) error {
	src, target := args[0], args[1]
	newName := argOr(args, 2, identifier.Base(identifier.Normalize(src)))
	if identifier.IsFolder(identifier.Normalize(src)) {
		moved, err := a.driver.MoveFolderWithinStorage(ctx, src, target, newName)
		a.printMap(moved)
		return err
	}
	id, err := a.driver.MoveFileWithinStorage(ctx, src, target, newName)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) copy(ctx context.Context, args []string) error {
	src, target := args[0], args[1]
	newName := argOr(args, 2, identifier.Base(identifier.Normalize(src)))
	if identifier.IsFolder(identifier.Normalize(src)) {
		copied, err := a.driver.CopyFolderWithinStorage(ctx, src, target, newName)
		a.printMap(copied)
		return err
	}
	id, err := a.driver.CopyFileWithinStorage(ctx, src, target, newName)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) rename(ctx context.Context, args []string) error {
	if identifier.IsFolder(identifier.Normalize(args[0])) {
		renamed, err := a.driver.RenameFolder(ctx, args[0], args[1])
		a.printMap(renamed)
		return err
	}
	id, err := a.driver.RenameFile(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if identifier.IsFolder(identifier.Normalize(args[0])) {
		return a.driver.DeleteFolder(ctx, args[0], a.flags.recursive)
	}
	return a.driver.DeleteFile(ctx, args[0])
}

func (a *app) info(ctx context.Context, args []string) error {
	id := identifier.Normalize(args[0])
	var out interface{}
	if identifier.IsFolder(id) {
		if !a.driver.FolderExists(ctx, id) {
			return errors.NewError(errors.ErrCodeObjectNotFound, "folder not found: "+id)
		}
		out = a.driver.FolderInfo(id)
	} else {
		info, err := a.driver.FileInfo(ctx, id)
		if err != nil {
			return err
		}
		if a.flags.hash != "" {
			if info.IdentifierHash, err = a.driver.Hash(id, a.flags.hash); err != nil {
				return err
			}
		}
		out = struct {
			*driver.FileInfo
			PublicURL string `json:"public_url"`
		}{info, a.driver.PublicURL(id)}
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) perms(ctx context.Context, args []string) error {
	perms, err := a.driver.Permissions(ctx, args[0])
	if err != nil {
		return err
	}
	mode := []byte("--")
	if perms.Read {
		mode[0] = 'r'
	}
	if perms.Write {
		mode[1] = 'w'
	}
	fmt.Fprintf(a.out, "%s %s\n", mode, identifier.Normalize(args[0]))
	return nil
}

// printMap writes the identifier pairs of a structural operation, including
// the completed part of a failed one.
func (a *app) printMap(m mutation.IdentifierMap) {
	olds := make([]string, 0, len(m))
	for old := range m {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		fmt.Fprintf(a.out, "%s -> %s\n", old, m[old])
	}
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}

func validation(format string, args ...interface{}) error {
	return errors.NewError(errors.ErrCodeValidationFailed, fmt.Sprintf(format, args...)).WithComponent("cli")
}
