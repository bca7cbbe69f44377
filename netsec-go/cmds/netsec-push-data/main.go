package main

import (
	"context"
	"log"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/netsec-ml/netsec/netsec-go/docstore"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	yaml "gopkg.in/yaml.v2"
)

type etlParams struct {
	MongoDB struct {
		FilePath   string `yaml:"file_path"`
		Database   string `yaml:"MongoDB_database"`
		Collection string `yaml:"Collection"`
	} `yaml:"MongoDB"`
}

func fail(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	c := config.DefaultConstants()
	args := struct {
		Params     string `help:"yaml file with a MongoDB section; flags override its values"`
		File       string `help:"csv file to push"`
		Database   string
		Collection string
		Env        string `help:"dotenv file loaded before reading MONGO_DB_URL"`
	}{
		Env: ".env",
	}
	arg.MustParse(&args)

	var p etlParams
	p.MongoDB.FilePath = "network_data/phisingData.csv"
	p.MongoDB.Database = c.DatabaseName
	p.MongoDB.Collection = c.CollectionName
	if args.Params != "" {
		buf, err := fileutil.ReadFile(args.Params)
		fail(err)
		fail(yaml.Unmarshal(buf, &p))
	}
	if args.File != "" {
		p.MongoDB.FilePath = args.File
	}
	if args.Database != "" {
		p.MongoDB.Database = args.Database
	}
	if args.Collection != "" {
		p.MongoDB.Collection = args.Collection
	}

	envutil.LoadDotEnv(args.Env)
	url := envutil.MustGetenv("MONGO_DB_URL")

	f, err := frame.LoadCSV(p.MongoDB.FilePath, frame.DefaultMissingTokens)
	fail(err)
	docs := docstore.Documents(f)
	log.Printf("converted %d rows of %s to documents", len(docs), p.MongoDB.FilePath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	store, err := docstore.Connect(ctx, url)
	fail(err)
	defer store.Close(context.Background())

	n, err := store.Replace(ctx, p.MongoDB.Database, p.MongoDB.Collection, docs)
	fail(err)
	log.Printf("inserted %d documents into %s.%s", n, p.MongoDB.Database, p.MongoDB.Collection)
}
