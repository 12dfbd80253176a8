package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pbanos/napkinxc/dataset"
	"github.com/pbanos/napkinxc/example"
	"github.com/pkg/errors"
	mgo "gopkg.in/mgo.v2"
)

// readExamples loads a full example set from path using format, the
// same input-flag-driven backend dispatch cmd/botanic's grow/test
// commands used for CSV vs SQLite3 vs PostgreSQL (grow_cmd.go's
// trainingSet method), generalized to every dataset.Reader this
// module adds.
func readExamples(ctx context.Context, format, path, mongoDB string) ([]*example.Example, error) {
	switch format {
	case "", "text":
		var f *os.File
		var err error
		if path == "" {
			f = os.Stdin
		} else {
			f, err = os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", path, err)
			}
			defer f.Close()
		}
		examples, _, err := dataset.ReadText(f)
		return examples, err
	case "csv":
		var f *os.File
		var err error
		if path == "" {
			f = os.Stdin
		} else {
			f, err = os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", path, err)
			}
			defer f.Close()
		}
		return dataset.ReadCSV(f)
	case "sqlite":
		db, err := dataset.OpenSQLite(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening sqlite3 dataset %s", path)
		}
		defer db.Close()
		return dataset.NewSQLReader(db).Read(ctx)
	case "postgres":
		db, err := dataset.OpenPostgres(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres dataset")
		}
		defer db.Close()
		return dataset.NewSQLReader(db).Read(ctx)
	case "mongo":
		session, err := mgo.Dial(path)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing mongo at %s", path)
		}
		defer session.Close()
		return dataset.NewMongoReader(session, mongoDB).Read(ctx)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
}

func addDatasetFlags(cmd flagSet, format, path, mongoDB *string) {
	cmd.StringVarP(path, "input", "i", "", "path to the dataset (file path, SQLite3 file, PostgreSQL DSN, or MongoDB URL; defaults to STDIN for text/csv)")
	cmd.StringVarP(format, "format", "f", "text", "dataset format: text, csv, sqlite, postgres, or mongo")
	cmd.StringVar(mongoDB, "mongo-db", "", "database name to use within the MongoDB server (format=mongo only)")
}

// flagSet is the subset of *pflag.FlagSet (via cobra.Command's
// PersistentFlags()/Flags()) addDatasetFlags needs, so it can bind
// onto either depending on the subcommand.
type flagSet interface {
	StringVarP(p *string, name, shorthand string, value string, usage string)
	StringVar(p *string, name string, value string, usage string)
}
