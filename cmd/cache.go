package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/resort-geocoder/internal/geocache"
	"github.com/sells-group/resort-geocoder/internal/location"
)

var cachePath string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and repair the location cache",
	Long:  "Commands for reading, correcting, invalidating and re-keying cached geocoding results.",
}

// -- cache stats --

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached successes and failures",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		formatCacheStats(cmd.OutOrStdout(), c.Path(), c.Stats())
		return nil
	},
}

// -- cache get --

var cacheGetCmd = &cobra.Command{
	Use:   "get <location>",
	Short: "Show the cached result for a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		key := location.Normalize(args[0])
		e, ok := c.Get(key)
		out := cmd.OutOrStdout()
		switch {
		case !ok:
			_, _ = fmt.Fprintf(out, "%s: not cached\n", key)
		case e.Failed():
			_, _ = fmt.Fprintf(out, "%s: failed\n", key)
		default:
			_, _ = fmt.Fprintf(out, "%s: %.6f, %.6f", key, e.Coords.Latitude, e.Coords.Longitude)
			if e.Coords.MatchedQuery != "" && e.Coords.MatchedQuery != key {
				_, _ = fmt.Fprintf(out, " (via %q)", e.Coords.MatchedQuery)
			}
			_, _ = fmt.Fprintln(out)
		}
		return nil
	},
}

// -- cache set --

var cacheSetCmd = &cobra.Command{
	Use:   "set <location> <latitude> <longitude>",
	Short: "Store manual coordinates for a location",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := parseCoordinates(args[1], args[2])
		if err != nil {
			return err
		}
		key := location.Normalize(args[0])
		if key == "" {
			return eris.New("cache set: empty location")
		}

		c, err := openCache()
		if err != nil {
			return err
		}
		c.Put(key, geocache.Success(lat, lon, ""))
		if err := c.Flush(); err != nil {
			return err
		}
		zap.L().Info("cache entry set", zap.String("location", key), zap.Float64("latitude", lat), zap.Float64("longitude", lon))
		return nil
	},
}

// -- cache invalidate --

var invalidateFlags struct {
	failures bool
	all      bool
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [location...]",
	Short: "Remove cached entries so they are resolved again",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !invalidateFlags.failures && !invalidateFlags.all && len(args) == 0 {
			return eris.New("cache invalidate: pass locations, --failures or --all")
		}

		c, err := openCache()
		if err != nil {
			return err
		}

		var removed int
		switch {
		case invalidateFlags.all:
			removed = c.Clear()
		case invalidateFlags.failures:
			removed = c.DeleteFailures()
		}
		for _, arg := range args {
			if c.Delete(location.Normalize(arg)) {
				removed++
			}
		}

		if err := c.Flush(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
		return nil
	},
}

// -- cache rekey --

var cacheRekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-normalize cache keys written by older normalizers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		before := c.Len()
		changed := c.Rekey(location.Normalize)
		if err := c.Flush(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rekeyed %d entries (%d -> %d keys).\n", changed, before, c.Len())
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "location cache file (default: paths.cache)")
	cacheInvalidateCmd.Flags().BoolVar(&invalidateFlags.failures, "failures", false, "remove every cached failure")
	cacheInvalidateCmd.Flags().BoolVar(&invalidateFlags.all, "all", false, "remove every entry")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheSetCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheRekeyCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*geocache.Cache, error) {
	path := cachePath
	if path == "" {
		path = cfg.Paths.Cache
	}
	return geocache.Open(path)
}

func parseCoordinates(latArg, lonArg string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, eris.Errorf("invalid latitude %q", latArg)
	}
	lon, err := strconv.ParseFloat(lonArg, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, eris.Errorf("invalid longitude %q", lonArg)
	}
	return lat, lon, nil
}

// formatCacheStats writes cache counts to w.
func formatCacheStats(out io.Writer, path string, s geocache.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "File:\t%s\n", path)
	_, _ = fmt.Fprintf(w, "Entries:\t%d\n", s.Entries)
	_, _ = fmt.Fprintf(w, "  Successes:\t%d\n", s.Successes)
	_, _ = fmt.Fprintf(w, "  Failures:\t%d\n", s.Failures)
	_ = w.Flush()
}
