package runtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPServer 把 http.Server 包装成 Task，ctx 取消后优雅关闭
func HTTPServer(srv *http.Server, log *zap.Logger) Task {
	return TaskFunc(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown", zap.Error(err))
		}
		return nil
	})
}
