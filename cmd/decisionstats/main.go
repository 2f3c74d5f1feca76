// Command decisionstats summarises decision Parquet files written by the
// battlesnake server or the arena.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	dirs := flag.String("dirs", "arena-data/decisions", "Comma separated directories holding decision .parquet files")
	bucket := flag.Int("bucket", 50, "Turn bucket size for the score-by-turn table (0 skips it)")
	flag.Parse()

	db, err := openDecisions(strings.Split(*dirs, ","))
	if err != nil {
		log.Fatalf("open decisions: %v", err)
	}
	defer db.Close()

	if err := report(context.Background(), os.Stdout, db, *bucket); err != nil {
		log.Fatalf("report: %v", err)
	}
}

func report(ctx context.Context, out io.Writer, db *sql.DB, bucket int) error {
	stats, err := queryPolicyStats(ctx, db)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "policy\tgames\tdecisions\tup\tdown\tleft\tright\tcut short\tavg best\tavg us")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%d\t%.1f\t%.0f\n",
			s.Policy, s.Games, s.Decisions,
			share(s.Up, s.Decisions), share(s.Down, s.Decisions), share(s.Left, s.Decisions), share(s.Right, s.Decisions),
			s.CutShort, s.AvgBest, s.AvgMicros)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if bucket <= 0 {
		return nil
	}
	buckets, err := queryTurnBuckets(ctx, db, bucket)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "policy\tturns\tdecisions\tavg best")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%d-%d\t%d\t%.1f\n", b.Policy, b.FromTurn, b.FromTurn+int64(bucket)-1, b.Decisions, b.AvgBest)
	}
	return tw.Flush()
}

func share(n, total int64) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.0f%%)", n, 100*float64(n)/float64(total))
}
