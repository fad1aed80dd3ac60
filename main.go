package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creatorlink/chatsync/api"
	"github.com/creatorlink/chatsync/cache"
	"github.com/creatorlink/chatsync/chat"
	"github.com/creatorlink/chatsync/live"
	"github.com/creatorlink/chatsync/timeline"
)

var (
	flagApiURL = flag.String("api-url", "http://127.0.0.1:3000", "message backend base URL")
	flagWsURL  = flag.String("ws-url", "ws://127.0.0.1:3000/ws", "push event websocket URL")
	flagToken  = flag.String("token", "", "session credential")
	flagUid    = flag.Int64("uid", 0, "local user id")
	flagName   = flag.String("user-name", "", "local user display name")
	flagPeer   = flag.Int64("peer", 0, "pre-select a conversation by peer id (deep link)")

	flagCacheFile = flag.String("cache-file", "", "conversation snapshot file, empty disables the cache")

	flagMetricsAddr    = flag.String("metrics-addr", "", "serve prometheus metrics on this address, empty disables")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")

	flagPprofDir = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pprofDir := filepath.Join(*flagPprofDir, strconv.Itoa(os.Getpid()))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("--pprof-dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	session := chat.Session{
		UserID: *flagUid,
		Name:   *flagName,
		Token:  *flagToken,
	}

	history := api.NewClient(*flagApiURL, session)
	store := timeline.NewStore(session)

	engine := timeline.NewEngine(store, history, func(ctx context.Context) (timeline.ILiveChannel, error) {
		return live.Dial(ctx, *flagWsURL, session)
	})

	var snapshot *cache.Snapshot
	if *flagCacheFile != "" {
		var err error
		snapshot, err = cache.Open(*flagCacheFile)
		if err != nil {
			// Degraded, not fatal.
			glog.Errorf("cache disabled: %v", err)
		} else {
			defer snapshot.Close()
			if convs, err := snapshot.LoadConversations(); err == nil && len(convs) > 0 {
				store.SeedList(convs, store.BeginListFetch())
				glog.Infof("seeded %d conversations from snapshot", len(convs))
			}
		}
	}

	if *flagMetricsAddr != "" && !*flagDisableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*flagMetricsAddr, mux); err != nil {
				glog.Errorf("metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)

	if err := engine.RefreshList(ctx); err != nil {
		glog.Errorf("initial conversation list fetch failed, continuing degraded: %v", err)
	}

	if *flagPeer > 0 {
		if err := engine.Controller().Select(ctx, *flagPeer); err != nil {
			glog.Errorf("pre-select peer %d: %v", *flagPeer, err)
		}
	}

	glog.Infof("chatsync client up, uid: %d", session.UserID)
	fmt.Println("commands: /list, /select <peer>, /history, /search <query>, /quit; anything else sends to the selected peer")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)

	var prof *Profiler
	defer func() {
		if prof != nil {
			prof.Stop()
		}
	}()

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				if prof != nil {
					prof.dumpGoroutines()
				}
			case syscall.SIGUSR2:
				if prof == nil {
					prof = StartProfiler(pprofDir)
				} else {
					prof.Stop()
					prof = nil
				}
			case syscall.SIGTERM, syscall.SIGINT:
				glog.Infof("received signal `%s`, stopping", sig)
				shutdown(cancel, store, snapshot)
				return 0
			}
		case line, ok := <-lines:
			if !ok {
				shutdown(cancel, store, snapshot)
				return 0
			}
			if quit := dispatch(ctx, engine, line); quit {
				shutdown(cancel, store, snapshot)
				return 0
			}
		}
	}
}

func shutdown(cancel context.CancelFunc, store *timeline.Store, snapshot *cache.Snapshot) {
	cancel()
	if snapshot != nil {
		if err := snapshot.SaveConversations(store.Conversations()); err != nil {
			glog.Errorf("save snapshot: %v", err)
		}
	}
	glog.Info("chatsync client exited")
}

// dispatch handles one composer line. Returns true on /quit.
func dispatch(ctx context.Context, engine *timeline.Engine, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	store := engine.Store()

	switch {
	case line == "/quit":
		return true

	case line == "/list":
		for _, cv := range store.Conversations() {
			marker := " "
			if cv.PeerID == store.Active() {
				marker = "*"
			}
			fmt.Printf("%s %6d  %-20s unread=%-3d %s\n", marker, cv.PeerID, cv.PeerName, cv.Unread, cv.LastMessage)
		}

	case line == "/history":
		for _, m := range store.Timeline() {
			state := ""
			if m.Pending {
				state = " (sending)"
			} else if m.Failed {
				state = " (FAILED)"
			}
			fmt.Printf("[%s] %d -> %d: %s%s\n", m.CreatedAt.Format("15:04:05"), m.SenderID, m.ReceiverID, m.Content, state)
		}

	case strings.HasPrefix(line, "/select "):
		peer, err := strconv.ParseInt(strings.TrimSpace(line[len("/select "):]), 10, 64)
		if err != nil {
			fmt.Println("usage: /select <peer id>")
			return false
		}
		if err := engine.Controller().Select(ctx, peer); err != nil {
			fmt.Printf("select failed, retry later: %v\n", err)
		}

	case strings.HasPrefix(line, "/search "):
		users, err := engine.SearchUsers(ctx, strings.TrimSpace(line[len("/search "):]))
		if err != nil {
			fmt.Printf("search failed: %v\n", err)
			return false
		}
		for _, u := range users {
			fmt.Printf("%6d  %-20s %-30s %s\n", u.UserID, u.Name, u.Email, u.UserType)
		}

	default:
		peer := store.Active()
		if peer == 0 {
			fmt.Println("no conversation selected, use /select <peer id>")
			return false
		}
		if err := engine.Send(ctx, peer, line); err != nil {
			fmt.Printf("send failed, message kept for retry: %v\n", err)
		}
	}
	return false
}

func validateFlags() int {
	if *flagApiURL == "" {
		return errorf("--api-url is required")
	}
	if *flagWsURL == "" {
		return errorf("--ws-url is required")
	}
	if *flagToken == "" {
		return errorf("--token is required")
	}
	if *flagUid <= 0 {
		return errorf("--uid is required positive integer")
	}
	if *flagPprofDir == "" {
		return errorf("--pprof-dir is required")
	}
	return 0
}

func errorf(format string, args ...interface{}) int {
	glog.Errorf(format, args...)
	return 1
}
