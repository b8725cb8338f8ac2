package chromedp_browser

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`

// Options configures every launched browser.
type Options struct {
	// ChromePath overrides the browser binary; empty lets chromedp find one.
	ChromePath string
	UserAgent  string
	// ProbeTimeout bounds the preflight page load.
	ProbeTimeout time.Duration
}

// Launcher starts one Chrome process per Launch call.
type Launcher struct {
	opts   Options
	logger *zap.Logger
}

// NewLauncher creates a launcher.
func NewLauncher(opts Options, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 45 * time.Second
	}
	return &Launcher{opts: opts, logger: logger}
}

// Launch starts Chrome with a fixed DevTools port so the agent can attach,
// routed through opts.Proxy when set.
func (l *Launcher) Launch(ctx context.Context, opts entity.BrowserOptions) (repository.Browser, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrBrowserLaunch, err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("remote-debugging-port", strconv.Itoa(port)),
		chromedp.WindowSize(960, 1080),
		chromedp.UserAgent(l.opts.UserAgent),
	)
	if l.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ChromePath))
	}
	if opts.Proxy != nil {
		allocOpts = append(allocOpts,
			chromedp.ProxyServer("http://"+opts.Proxy.Server()),
			chromedp.Flag("proxy-bypass-list", "localhost;127.0.0.1"),
		)
	}

	// The browser outlives ctx: it is tied to the Browser handle and
	// stopped by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logger.Sugar().Debugf))

	b := &browser{
		taskCtx:  taskCtx,
		cancel:   func() { taskCancel(); allocCancel() },
		debugURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		probeTTL: l.opts.ProbeTimeout,
		logger:   l.logger,
	}

	startup := []chromedp.Action{}
	if opts.Proxy != nil {
		listenProxyAuth(taskCtx, *opts.Proxy, l.logger)
		startup = append(startup, fetch.Enable().WithHandleAuthRequests(true))
	}
	if err := chromedp.Run(taskCtx, startup...); err != nil {
		b.cancel()
		return nil, fmt.Errorf("%w: %v", repository.ErrBrowserLaunch, err)
	}

	fields := []zap.Field{zap.String("debug_url", b.debugURL), zap.Bool("headless", opts.Headless)}
	if opts.Proxy != nil {
		fields = append(fields, zap.Stringer("proxy", opts.Proxy))
	}
	l.logger.Debug("browser launched", fields...)
	return b, nil
}

// listenProxyAuth answers proxy authentication challenges and releases the
// requests paused by the Fetch domain.
func listenProxyAuth(taskCtx context.Context, proxy entity.Proxy, logger *zap.Logger) {
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				execCtx := cdp.WithExecutor(taskCtx, chromedp.FromContext(taskCtx).Target)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}
				if err := fetch.ContinueWithAuth(ev.RequestID, resp).Do(execCtx); err != nil {
					logger.Debug("proxy auth answer failed", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				execCtx := cdp.WithExecutor(taskCtx, chromedp.FromContext(taskCtx).Target)
				if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil {
					logger.Debug("continue paused request failed", zap.Error(err))
				}
			}()
		}
	})
}

type browser struct {
	taskCtx  context.Context
	cancel   func()
	debugURL string
	probeTTL time.Duration
	logger   *zap.Logger
}

func (b *browser) DebugURL() string {
	return b.debugURL
}

// Probe navigates the browser's first tab to url and inspects the DOM.
func (b *browser) Probe(ctx context.Context, url string) (*entity.PageProbe, error) {
	probeCtx, cancel := context.WithTimeout(b.taskCtx, b.probeTTL)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(probeCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}

	var html string
	if err := chromedp.Run(probeCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}

	var status int64
	if resp != nil {
		status = resp.Status
	}
	probe, err := AnalyzePage(url, status, html)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("page probed",
		zap.String("url", url),
		zap.Int64("status", status),
		zap.String("title", probe.Title),
		zap.Bool("not_found", probe.NotFound),
		zap.Bool("widget", probe.HasWidget),
	)
	return probe, nil
}

func (b *browser) Close() error {
	err := chromedp.Cancel(b.taskCtx)
	b.cancel()
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
