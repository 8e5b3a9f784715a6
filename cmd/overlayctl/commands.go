package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/superoverlay/internal/core/httpclient"
	"github.com/mohammed-shakir/superoverlay/internal/kml"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/pyramid"
	"github.com/mohammed-shakir/superoverlay/internal/region"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
	"github.com/mohammed-shakir/superoverlay/internal/tileurl"
)

type renderFlags struct {
	base     string
	format   string
	indent   bool
	debug    bool
	noRegion bool
	aliases  string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "overlayctl",
		Short:         "Render KML super-overlay documents from map-source descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rf := &renderFlags{}
	pf := root.PersistentFlags()
	pf.StringVar(&rf.base, "base", "http://localhost:8090/", "absolute service base URL used in links")
	pf.StringVar(&rf.format, "format", "kml", "output container: "+strings.Join(kml.ContainerNames(), ", "))
	pf.BoolVar(&rf.indent, "indent", true, "indent KML output")
	pf.BoolVar(&rf.debug, "debug", false, "emit debug links (always plain KML)")
	pf.BoolVar(&rf.noRegion, "no-region-clip", false, "emit every child regardless of the declared region")
	pf.StringVar(&rf.aliases, "aliases", tileurl.StrategyTile, "alias host strategy: tile, roundrobin or random")

	root.AddCommand(
		newRootDocCmd(rf),
		newChildrenCmd(rf),
		newCatalogCmd(rf),
		newQuadkeyCmd(),
		newBoundsCmd(),
	)
	return root
}

func newRootDocCmd(rf *renderFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "root <descriptor.xml|url>",
		Short: "Render the root document of a map source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, asm, err := rf.expander(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := exp.BuildRoot()
			if err != nil {
				return err
			}
			return rf.write(cmd, asm, res)
		},
	}
}

func newChildrenCmd(rf *renderFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "children <descriptor.xml|url> <z> <x> <y>",
		Short: "Render the document of one tile: its child images and links",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			zxy, err := parseInts(args[1:])
			if err != nil {
				return err
			}
			exp, asm, err := rf.expander(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := exp.ExpandChildren(zxy[0], zxy[1], zxy[2])
			if err != nil {
				return err
			}
			return rf.write(cmd, asm, res)
		},
	}
}

func newCatalogCmd(rf *renderFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "catalog <dir>",
		Short: "Render the catalog of every descriptor under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asm, err := kml.NewAssembler(rf.format, rf.indent)
			if err != nil {
				return err
			}
			store := mapsource.NewFSStore(os.DirFS(args[0]), nil)
			sources, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			res := pyramid.BuildCatalog(name, sources, pyramid.CatalogOptions{
				BaseURL: rf.baseURL(),
				Debug:   rf.debug,
			})
			return rf.write(cmd, asm, res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "superoverlay", "catalog document name")
	return cmd
}

func newQuadkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quadkey <z> <x> <y> | quadkey <key>",
		Short: "Encode a tile address as a quadkey, or decode a quadkey",
		Args: cobra.MatchAll(cobra.RangeArgs(1, 3), func(_ *cobra.Command, args []string) error {
			if len(args) == 2 {
				return fmt.Errorf("want <z> <x> <y> or a single quadkey")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				x, y, z, err := tilegrid.ParseQuadKey(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d-%d-%d\n", z, x, y)
				return err
			}
			zxy, err := parseInts(args)
			if err != nil {
				return err
			}
			q, err := tilegrid.QuadKey(zxy[1], zxy[2], zxy[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), q)
			return err
		},
	}
}

func newBoundsCmd() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "bounds <srid> <z> <x> <y>",
		Short: "Print the box of a tile as north south east west",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseInts(args)
			if err != nil {
				return err
			}
			t := tilegrid.Tile{Z: v[1], X: v[2], Y: v[3], SRID: tilegrid.SRID(v[0])}
			var b tilegrid.BBox
			if target == 0 {
				b, err = tilegrid.Bounds(t)
			} else {
				b, err = tilegrid.BoundsIn(t, tilegrid.SRID(target))
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				ftoa(b.North), ftoa(b.South), ftoa(b.East), ftoa(b.West))
			return err
		},
	}
	cmd.Flags().IntVar(&target, "in", 0, "express the box in this EPSG code instead of degrees")
	return cmd
}

func (rf *renderFlags) baseURL() string {
	if strings.HasSuffix(rf.base, "/") {
		return rf.base
	}
	return rf.base + "/"
}

// expander loads a descriptor from a local path or an http(s) URL.
func (rf *renderFlags) expander(ctx context.Context, file string) (*pyramid.Expander, *kml.Assembler, error) {
	asm, err := kml.NewAssembler(rf.format, rf.indent)
	if err != nil {
		return nil, nil, err
	}
	var data []byte
	name := file
	if u, perr := url.Parse(file); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		data, err = httpclient.Fetch(ctx, httpclient.NewOutbound(), file)
		name = path.Base(u.Path)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, nil, err
	}
	id := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	src, err := mapsource.Parse(data, id)
	if err != nil {
		return nil, nil, err
	}

	var clip region.Clipper = region.NewPolygonClipper(src.Region)
	if rf.noRegion {
		clip = region.AcceptAll{}
	}
	base := rf.baseURL()
	urls := tileurl.New(tileurl.NewPicker(rf.aliases), base+"zoom.png")
	exp := pyramid.New(src, clip, urls, pyramid.Options{
		BaseURL:       base + pyramid.EscapeID(src.ID) + "/",
		Ext:           asm.Ext(rf.debug),
		Debug:         rf.debug,
		DisplayRegion: true,
	})
	return exp, asm, nil
}

func (rf *renderFlags) write(cmd *cobra.Command, asm *kml.Assembler, res *pyramid.Result) error {
	out, err := asm.Assemble(res.Doc, rf.debug)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out.Body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d network links, %d tiles outside region\n",
		out.Filename, res.Links, res.Rejected)
	return nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", a)
		}
		out[i] = n
	}
	return out, nil
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
