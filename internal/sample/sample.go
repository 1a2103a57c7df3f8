package sample

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconciler/internal/model"
	"github.com/cleared-dev/reconciler/internal/reconcile"
)

// Header is the column row written to both files.
var Header = []string{"data", "descricao", "valor", "tipo"}

// Options controls the generated data set.
type Options struct {
	Count      int       // bank rows
	MatchRatio float64   // share of bank rows that get an accounting counterpart
	Extra      int       // accounting rows with no bank counterpart
	Start      time.Time // first possible date
	Days       int       // dates fall in [Start, Start+Days)
	Seed       uint64
}

// Summary reports what Generate wrote.
type Summary struct {
	Bank       int
	Accounting int
	Paired     int
}

// Generate writes a bank CSV and an accounting CSV. Paired rows share amount
// and type and are dated within the matching window of each other, so a
// reconciliation run pairs exactly Summary.Paired of them.
func Generate(opts Options, bank, accounting io.Writer) (Summary, error) {
	if opts.Count < 0 || opts.Extra < 0 {
		return Summary{}, errors.New("counts must not be negative")
	}
	if opts.MatchRatio < 0 || opts.MatchRatio > 1 {
		return Summary{}, fmt.Errorf("match ratio %v out of range [0,1]", opts.MatchRatio)
	}
	if opts.Days < 1 {
		opts.Days = 30
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -opts.Days)
	}

	g := &generator{
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		used: make(map[int64]bool),
	}
	bw, aw := csv.NewWriter(bank), csv.NewWriter(accounting)
	if err := bw.Write(Header); err != nil {
		return Summary{}, fmt.Errorf("writing bank header: %w", err)
	}
	if err := aw.Write(Header); err != nil {
		return Summary{}, fmt.Errorf("writing accounting header: %w", err)
	}

	var sum Summary
	for range opts.Count {
		date := opts.Start.AddDate(0, 0, g.rng.IntN(opts.Days))
		amount, typ := g.amount(), g.kind()
		if err := bw.Write(row(date, "Pagamento "+faker.Name(), amount, typ)); err != nil {
			return sum, fmt.Errorf("writing bank row: %w", err)
		}
		sum.Bank++

		if g.rng.Float64() >= opts.MatchRatio {
			continue
		}
		offset := g.rng.IntN(2*reconcile.WindowDays+1) - reconcile.WindowDays
		if err := aw.Write(row(date.AddDate(0, 0, offset), faker.Sentence(), amount, typ)); err != nil {
			return sum, fmt.Errorf("writing accounting row: %w", err)
		}
		sum.Accounting++
		sum.Paired++
	}

	for range opts.Extra {
		date := opts.Start.AddDate(0, 0, g.rng.IntN(opts.Days))
		if err := aw.Write(row(date, faker.Sentence(), g.amount(), g.kind())); err != nil {
			return sum, fmt.Errorf("writing accounting row: %w", err)
		}
		sum.Accounting++
	}

	bw.Flush()
	aw.Flush()
	if err := bw.Error(); err != nil {
		return sum, fmt.Errorf("flushing bank CSV: %w", err)
	}
	if err := aw.Error(); err != nil {
		return sum, fmt.Errorf("flushing accounting CSV: %w", err)
	}
	return sum, nil
}

type generator struct {
	rng  *rand.Rand
	used map[int64]bool
}

// amount returns a value in cents never handed out before, so unrelated rows
// cannot match each other.
func (g *generator) amount() decimal.Decimal {
	for {
		cents := g.rng.Int64N(1_000_000) + 1
		if !g.used[cents] {
			g.used[cents] = true
			return decimal.New(cents, -2)
		}
	}
}

func (g *generator) kind() model.Type {
	if g.rng.IntN(2) == 0 {
		return model.TypeCredit
	}
	return model.TypeDebit
}

func row(date time.Time, desc string, amount decimal.Decimal, typ model.Type) []string {
	return []string{date.Format(time.DateOnly), desc, amount.StringFixed(2), string(typ)}
}
