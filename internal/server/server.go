// Package server 面向积木编程客户端的 HTTP 接口：客户端只会发 GET，
// 路径即命令，/poll 取回报，/crossdomain.xml 取跨域策略。
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/router"
)

const (
	PollPath        = "poll"
	CrossDomainPath = "crossdomain.xml"

	contentType = "text/html; charset=ISO-8859-1"
	crlf        = "\r\n"
)

// Bridge 命令校验入队与回报格式化，由 router.Router 实现
type Bridge interface {
	Submit(path string) router.Result
	Report() string
}

type Server struct {
	lc     logger.LoggingClient
	bridge Bridge
	addr   string

	ln  net.Listener
	srv *http.Server
}

func New(lc logger.LoggingClient, cfg config.HTTPServer, bridge Bridge) *Server {
	s := &Server{
		lc:     lc,
		bridge: bridge,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
	s.srv = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Listen 先绑定端口，绑定失败在启动阶段即为致命错误
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.NewCommonEdgeX(errors.KindServerError, "http listen on "+s.addr+" failed, is another bridge running?", err)
	}
	s.ln = ln
	s.lc.Infof("HTTP server is listening on %s", ln.Addr())
	return nil
}

// Serve 阻塞直到 Shutdown；正常关闭返回 nil
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.NewCommonEdgeX(errors.KindServerError, "http server is not listening", nil)
	}
	if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
		return errors.NewCommonEdgeX(errors.KindServerError, "http serve", err)
	}
	return nil
}

// Shutdown 优雅关闭；Serve 从未运行时 http.Server 不知道这个 listener，需要自己关
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if s.ln != nil {
		if cerr := s.ln.Close(); cerr != nil && !stderrors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}

// Port 实际监听的端口；未监听时返回配置值
func (s *Server) Port() string {
	if s.ln != nil {
		if a, ok := s.ln.Addr().(*net.TCPAddr); ok {
			return strconv.Itoa(a.Port)
		}
	}
	_, port, _ := net.SplitHostPort(s.addr)
	return port
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cmd := strings.TrimPrefix(r.URL.Path, "/")
	switch cmd {
	case CrossDomainPath:
		s.respond(w, CrossDomainPolicy(s.Port()))
	case PollPath:
		s.respond(w, s.bridge.Report())
	default:
		res := s.bridge.Submit(cmd)
		if !res.Accepted {
			s.lc.Debugf("rejected %q: %s", cmd, res.Body)
		}
		s.respond(w, res.Body)
	}
}

// 客户端不认标准错误码，所有应答一律 200
func (s *Server) respond(w http.ResponseWriter, body string) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body + crlf)); err != nil {
		s.lc.Debugf("write response: %v", err)
	}
}

// CrossDomainPolicy Flash 客户端要求的跨域策略文档，以 NUL 结尾
func CrossDomainPolicy(port string) string {
	return fmt.Sprintf("<cross-domain-policy>\n  <allow-access-from domain=\"*\" to-ports=\"%s\"/>\n</cross-domain-policy>\n\x00", port)
}
