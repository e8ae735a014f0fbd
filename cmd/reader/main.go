package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-reader-client/apiclient"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/jrsteele09/go-reader-client/internal/app"
	"github.com/jrsteele09/go-reader-client/internal/config"
	"github.com/jrsteele09/go-reader-client/internal/logging"
	"github.com/jrsteele09/go-reader-client/oauthmodel"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const notLoggedIn = "Not logged in. Run `reader login` first."

type command struct {
	run func(ctx context.Context, a *app.App, args []string) error
	// authenticated commands check the stored session before running.
	authenticated bool
}

var commands = map[string]command{
	"login":    {run: runLogin},
	"register": {run: runRegister},
	"logout":   {run: runLogout},
	"status":   {run: runStatus},
	"novels":   {run: runNovels, authenticated: true},
	"novel":    {run: runNovel, authenticated: true},
	"chapters": {run: runChapters, authenticated: true},
	"chapter":  {run: runChapter, authenticated: true},
	"progress": {run: runProgress, authenticated: true},
	"fetch":    {run: runFetch, authenticated: true},
	"sources":  {run: runSources, authenticated: true},
}

var usages = map[string]string{
	"login":    "login -username NAME [-password PASS]",
	"register": "register -username NAME -email EMAIL [-password PASS] [-name FULL_NAME] [-lang CODE]",
	"logout":   "logout",
	"status":   "status",
	"novels":   "novels",
	"novel":    "novel ID",
	"chapters": "chapters [-page N] [-sort asc|desc] NOVEL_ID",
	"chapter":  "chapter [-lang CODE] NOVEL_ID NUMBER",
	"progress": "progress NOVEL_ID NUMBER [PERCENT]",
	"fetch":    "fetch NOVEL_ID",
	"sources":  "sources",
}

var commandOrder = []string{"login", "register", "logout", "status", "novels", "novel", "chapters", "chapter", "progress", "fetch", "sources"}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(os.Stdout, c.GetAppName())
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		usage(os.Stderr, c.GetAppName())
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, c)
	if err != nil {
		log.Err(err).Msg("Failed to start")
		return 1
	}
	defer a.Close()

	unsubscribe := a.Auth.OnLogout(func(reason session.LogoutReason) {
		if reason != session.ReasonUserLogout {
			fmt.Fprintln(os.Stderr, "Your session has ended. Run `reader login` to sign in again.")
		}
	})
	defer unsubscribe()

	if addr := c.GetMetricsAddr(); addr != "" {
		shutdown := serveMetrics(addr, a)
		defer shutdown()
	}

	if cmd.authenticated {
		ok, err := a.Auth.CheckSession(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, apiclient.UserMessage(err))
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, notLoggedIn)
			return 1
		}
	}

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, apiclient.UserMessage(err))
		return 1
	}
	return 0
}

func usage(w io.Writer, appName string) {
	fmt.Fprintln(w, figure.NewFigure(appName, "cybermedium", true).String())
	fmt.Fprintln(w, "Usage: reader COMMAND [ARGS]")
	fmt.Fprintln(w)
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  reader %s\n", usages[name])
	}
	fmt.Fprintln(w, "  reader help")
}

// serveMetrics exposes the app's registry until the returned function is called.
func serveMetrics(addr string, a *app.App) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password, read from stdin when omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := passwordOrPrompt(*password)
	if err != nil {
		return err
	}
	if err := a.Auth.Login(ctx, oauthmodel.Credentials{Username: *username, Password: pw}); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", *username)
	return nil
}

func runRegister(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, read from stdin when omitted")
	fullName := fs.String("name", "", "full name")
	language := fs.String("lang", "es", "default reading language")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := passwordOrPrompt(*password)
	if err != nil {
		return err
	}

	user, err := a.Auth.SignUp(ctx, oauthmodel.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: pw,
		FullName: *fullName,
		Preferences: &oauthmodel.Preferences{
			DefaultLanguage:   *language,
			ReadingFontSize:   16,
			ReadingLineHeight: 1.5,
		},
	})
	if user != nil {
		fmt.Printf("Registered %s <%s>\n", user.Username, user.Email)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", user.Username)
	return nil
}

func runLogout(ctx context.Context, a *app.App, _ []string) error {
	if err := a.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runStatus(ctx context.Context, a *app.App, _ []string) error {
	ok, err := a.Auth.CheckSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Println("Logged in")
	return nil
}

func runNovels(ctx context.Context, a *app.App, _ []string) error {
	novels, err := a.Content.ListNovels(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tREAD\tCHAPTERS")
	for _, n := range novels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", n.ID, n.Title, n.Type, n.ReadChapters, n.TotalChapters)
	}
	return w.Flush()
}

func runNovel(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return usageError("novel")
	}
	n, err := a.Content.GetNovel(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", n.Title)
	if n.Author != "" {
		fmt.Printf("by %s\n", n.Author)
	}
	fmt.Printf("Type: %s  Status: %s  Chapters: %d/%d\n", n.Type, n.Status, n.ReadChapters, n.TotalChapters)
	if n.SourceURL != "" {
		fmt.Printf("Source: %s\n", n.SourceURL)
	}
	if n.Description != "" {
		fmt.Printf("\n%s\n", n.Description)
	}
	return nil
}

func runChapters(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("chapters", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	order := fs.String("sort", string(content.SortDesc), "asc or desc")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("chapters")
	}

	result, err := a.Content.ListChapters(ctx, fs.Arg(0), *page, content.SortOrder(*order))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tTITLE")
	for _, ch := range result.Chapters {
		fmt.Fprintf(w, "%d\t%s\n", ch.ChapterNumber, ch.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Page %d of %d\n", result.Page, result.TotalPages)
	return nil
}

func runChapter(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("chapter", flag.ContinueOnError)
	language := fs.String("lang", "", "content language")
	if err := fs.Parse(args); err != nil {
		return err
	}
	novelID, number, err := chapterArgs(fs.Args(), "chapter")
	if err != nil {
		return err
	}

	ch, err := a.Content.GetChapter(ctx, novelID, number, content.ChapterOptions{Language: *language})
	if err != nil {
		return err
	}
	fmt.Printf("%s\n\n", ch.Title)
	if ch.Type == content.TypeManhwa {
		for _, img := range ch.Images {
			fmt.Println(img.URL)
		}
		return nil
	}
	fmt.Println(ch.Content)
	return nil
}

func runProgress(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return usageError("progress")
	}
	novelID, number, err := chapterArgs(args[:2], "progress")
	if err != nil {
		return err
	}

	var progress *content.ReadingProgress
	if len(args) == 3 {
		value, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "%"), 64)
		if err != nil {
			return content.ErrInvalidProgress
		}
		progress, err = a.Content.UpdateReadingProgress(ctx, novelID, number, value)
		if err != nil {
			return err
		}
	} else {
		progress, err = a.Content.GetReadingProgress(ctx, novelID, number)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Chapter %d: %.1f%%\n", number, progress.Progress)
	return nil
}

func runFetch(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return usageError("fetch")
	}
	result, err := a.Content.FetchChapters(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d new)\n", result.Message, result.ChaptersAdded)
	return nil
}

func runSources(ctx context.Context, a *app.App, _ []string) error {
	sources, err := a.Content.ListSources(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLANGUAGE\tURL")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Language, s.BaseURL)
	}
	return w.Flush()
}

func usageError(name string) error {
	return errors.New("usage: reader " + usages[name])
}

func chapterArgs(args []string, name string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, usageError(name)
	}
	number, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, content.ErrInvalidChapter
	}
	return args[0], number, nil
}

func passwordOrPrompt(password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
