package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/echotrace/echotrace-go/log"
)

var (
	ErrAlreadyStarted = errors.New("application already started")
	ErrClosePanic     = errors.New("close function panicked")
)

// Application 管理长驻任务和关闭函数的生命周期
type Application struct {
	ctx          context.Context
	cancel       context.CancelFunc
	signals      []os.Signal
	workers      []Worker
	closeFuncs   []CloseFunc
	closeTimeout time.Duration
	mu           sync.RWMutex
	started      bool
}

// Worker 长驻任务，运行直到上下文取消
type Worker struct {
	Name string
	Run  func(context.Context) error
}

// CloseFunc 具有可选超时的关闭函数
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

type Option func(*Application)

// WithContext 设置应用的根上下文
func WithContext(ctx context.Context) Option {
	return func(app *Application) {
		if ctx != nil {
			app.ctx, app.cancel = context.WithCancel(ctx)
		}
	}
}

// WithCloseTimeout 设置关闭函数的默认超时时间
func WithCloseTimeout(timeout time.Duration) Option {
	return func(app *Application) {
		if timeout > 0 {
			app.closeTimeout = timeout
		}
	}
}

// WithSignals 设置用于优雅关闭的自定义信号
func WithSignals(signals ...os.Signal) Option {
	return func(app *Application) {
		if len(signals) > 0 {
			app.signals = make([]os.Signal, len(signals))
			copy(app.signals, signals)
		}
	}
}

// WithWorker 向应用添加长驻任务
func WithWorker(name string, run func(context.Context) error) Option {
	return func(app *Application) {
		if run == nil {
			log.Warn().Str("name", name).Msg("nil worker ignored")
			return
		}
		app.workers = append(app.workers, Worker{Name: name, Run: run})
	}
}

// WithClose 添加在关闭期间执行的关闭函数
func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(app *Application) {
		if fn == nil {
			log.Warn().Str("name", name).Msg("nil close function ignored")
			return
		}

		if timeout == 0 {
			timeout = app.closeTimeout
		}

		app.closeFuncs = append(app.closeFuncs, CloseFunc{
			Name:    name,
			Fn:      fn,
			Timeout: timeout,
		})
	}
}

// New 使用给定选项创建新的应用实例
func New(options ...Option) *Application {
	app := &Application{
		closeTimeout: 30 * time.Second,
		signals:      []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT},
		workers:      make([]Worker, 0),
		closeFuncs:   make([]CloseFunc, 0),
	}

	// 设置默认上下文
	app.ctx, app.cancel = context.WithCancel(context.Background())

	// 应用选项
	for _, opt := range options {
		opt(app)
	}

	return app
}

// RegisterClose 在运行时向应用添加关闭函数
func (app *Application) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return errors.New("close function cannot be nil")
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if timeout == 0 {
		timeout = app.closeTimeout
	}

	app.closeFuncs = append(app.closeFuncs, CloseFunc{
		Name:    name,
		Fn:      fn,
		Timeout: timeout,
	})

	return nil
}

// Start 启动所有任务并阻塞直到关闭
func (app *Application) Start() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return ErrAlreadyStarted
	}
	app.started = true
	workers := make([]Worker, len(app.workers))
	copy(workers, app.workers)
	signals := make([]os.Signal, len(app.signals))
	copy(signals, app.signals)
	app.mu.Unlock()

	if len(workers) == 0 {
		log.Info().Msg("no workers configured, starting signal handler only")
	}

	// 设置信号处理
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	// 创建错误组来管理协程
	eg, egCtx := errgroup.WithContext(app.ctx)

	for _, worker := range workers {
		worker := worker
		eg.Go(func() error {
			log.Debug().Str("worker", worker.Name).Msg("worker started")
			err := worker.Run(egCtx)
			if err != nil && err != context.Canceled {
				log.Error().Err(err).Str("worker", worker.Name).Msg("worker stopped with error")
				return err
			}
			return nil
		})
	}

	// 处理关闭信号
	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			app.cancel()
			return nil
		case <-egCtx.Done():
			// context.Canceled 是正常的关闭，不应该作为错误返回
			if egCtx.Err() == context.Canceled {
				return nil
			}
			return egCtx.Err()
		}
	})

	// 等待关闭
	err := eg.Wait()

	// 如果有错误且不是正常的取消错误，则返回错误
	if err != nil && err != context.Canceled {
		app.runCloseTasks()
		return err
	}

	app.runCloseTasks()

	return nil
}

// Stop 优雅地停止应用
func (app *Application) Stop() {
	app.cancel()
}

// runCloseTasks 执行所有关闭函数
func (app *Application) runCloseTasks() {
	app.mu.RLock()
	closeFuncs := make([]CloseFunc, len(app.closeFuncs))
	copy(closeFuncs, app.closeFuncs)
	app.mu.RUnlock()

	if len(closeFuncs) == 0 {
		return
	}

	// 并发执行关闭函数
	eg := &errgroup.Group{}
	for _, close := range closeFuncs {
		close := close
		eg.Go(func() error {
			return app.runCloseTask(close)
		})
	}

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("some close functions failed")
	}
}

// runCloseTask 执行单个带超时的关闭函数
func (app *Application) runCloseTask(close CloseFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), close.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("close", close.Name).Msg("close function panicked")
				done <- ErrClosePanic
			}
		}()
		done <- close.Fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Str("close", close.Name).Msg("close function failed")
		}
		return err
	case <-ctx.Done():
		log.Warn().Str("close", close.Name).Msg("close function timed out")
		return ctx.Err()
	}
}
