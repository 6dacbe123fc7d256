package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/diamondburned/duration"
	"github.com/diamondburned/smolblog/client"
	"github.com/diamondburned/smolblog/server"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"

	toml "github.com/pelletier/go-toml"
)

var (
	configGlob = "./config*.toml"

	// sweep
	dryRun = false
	grace  = "1h"

	// post
	host      = "http://127.0.0.1:8080"
	username  = ""
	content   = ""
	imagePath = ""
	avatarURL = ""
)

func stderrlnf(f string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", v...)
}

type Config struct {
	ListenAddr string `toml:"listenAddr"`

	server.Config
}

func NewConfig() Config {
	return Config{
		ListenAddr: "0.0.0.0:8080",
		Config:     server.NewConfig(),
	}
}

func init() {
	pflag.StringVarP(
		&configGlob, "config", "c", configGlob,
		"Path to config file with glob support for fallback",
	)

	pflag.BoolVar(&dryRun, "dry-run", dryRun, "sweep: only print the orphaned files")
	pflag.StringVar(&grace, "grace", grace, "sweep: only remove files older than this")

	pflag.StringVar(&host, "host", host, "post: URL of the server")
	pflag.StringVarP(&username, "user", "u", username, "post: username")
	pflag.StringVar(&content, "content", content, "post: post content, - reads stdin")
	pflag.StringVar(&imagePath, "image", imagePath, "post: path to a PNG image")
	pflag.StringVar(&avatarURL, "avatar", avatarURL, "post: avatar URL")

	pflag.Usage = func() {
		stderrlnf("Usage: %s [subcommand] [flags...]", filepath.Base(os.Args[0]))
		stderrlnf("Subcommands:")
		stderrlnf("  serve          Run the HTTP server (default)")
		stderrlnf("  sweep          Remove uploaded files that no post uses")
		stderrlnf("  post           Submit a post to a running server")
		stderrlnf("Flags:")
		pflag.PrintDefaults()
	}
}

func main() {
	pflag.Parse()

	switch pflag.Arg(0) {
	case "post":
		// The client doesn't need any config.
		submit()

	case "sweep":
		sweep(loadConfig())

	case "serve", "":
		serve(loadConfig())

	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func loadConfig() Config {
	// Read all globs.
	d, err := filepath.Glob(configGlob)
	if err != nil {
		log.Fatalln("Failed to glob:", err)
	}

	var cfg = NewConfig()

	// Config files are optional; the defaults and $DATABASE_URL are enough.
	for _, path := range d {
		f, err := ioutil.ReadFile(path)
		if err != nil {
			log.Fatalln("Failed to read globbed config file:", err)
		}

		t, err := toml.LoadBytes(f)
		if err != nil {
			log.Fatalln("Failed to load TOML:", err)
		}

		if err := t.Unmarshal(&cfg); err != nil {
			log.Fatalln("Failed to unmarshal from TOML:", err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}

	if cfg.DatabaseURL == "" {
		log.Fatalln("$DATABASE_URL is not set.")
	}

	return cfg
}

func serve(cfg Config) {
	a, err := server.New(cfg.Config)
	if err != nil {
		log.Fatalln("Failed to create instance:", err)
	}
	defer a.Close()

	c := middleware.NewCompressor(5, "text/html", "text/css", "text/plain")
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})

	mux := chi.NewMux()
	mux.Use(c.Handler)
	mux.Mount("/", a)

	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalln("Failed to listen:", err)
	}

	var server = http.Server{
		Handler: mux,
	}

	// Explicitly set up HTTP/2.
	err = http2.ConfigureServer(&server, &http2.Server{
		MaxHandlers:          4096,
		MaxConcurrentStreams: 1024,
	})

	if err != nil {
		log.Fatalln("Failed to configure HTTP/2 server:", err)
	}

	log.Println("Starting HTTP/2 listener at", l.Addr())

	go func() {
		if err := server.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Fatalln("Failed to start:", err)
		}
	}()

	// Handle SIGINT and gracefully close the server.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	// Give the server a 10 seconds timeout for shutting down.
	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalln("Failed to gracefully close the server:", err)
	}
}

func sweep(cfg Config) {
	g, err := duration.ParseDuration(grace)
	if err != nil {
		log.Fatalln("Invalid grace duration:", err)
	}

	names, err := server.Sweep(context.Background(), cfg.Config, time.Duration(g), dryRun)

	for _, name := range names {
		fmt.Println(name)
	}

	if err != nil {
		log.Fatalln("Failed to sweep:", err)
	}

	if dryRun {
		log.Printf("Found %d orphaned file(s)\n", len(names))
	} else {
		log.Printf("Removed %d orphaned file(s)\n", len(names))
	}
}

func submit() {
	c, err := client.NewClient(host)
	if err != nil {
		log.Fatalln("Failed to create client:", err)
	}
	c.SetUserAgent("smolblog-cli")

	var s = client.Submission{
		Username:  username,
		Content:   content,
		AvatarURL: avatarURL,
	}

	if content == "-" {
		b, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalln("Failed to read stdin:", err)
		}
		s.Content = string(b)
	}

	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			log.Fatalln("Failed to open image:", err)
		}
		defer f.Close()

		s.Image = f
		s.ImageName = filepath.Base(imagePath)
	}

	loc, err := c.Submit(context.Background(), s)
	if err != nil {
		log.Fatalln("Failed to submit post:", err)
	}

	fmt.Println(loc)
}
