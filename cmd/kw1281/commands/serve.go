package commands

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/kwp"
	"github.com/spf13/cobra"
)

const reconnectDelay = 12 * time.Second

var httpServe string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serves module reads over http",
	Long: `serve keeps the K-line interface open and wakes the module for every request.
Requests are handled one at a time.

  GET /ident
  GET /eeprom/{address}/{count}
  GET /rom/{address}/{count}
  GET /version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := connect()
		if err != nil {
			return err
		}
		s := &server{dev: dev}

		// accept :[portnum] as well as [portnum]
		listen := httpServe
		if i, err := strconv.Atoi(listen); err == nil {
			listen = fmt.Sprintf(":%d", i)
		}
		h := &http.Server{Addr: listen, Handler: s.router()}
		go func() {
			log.Infof("Listening on %s", listen)
			if err := h.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(err)
			}
		}()

		done := make(chan os.Signal, 1)
		signal.Notify(done,
			syscall.SIGHUP,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGQUIT)

		for {
			select {
			case <-done:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				err := h.Shutdown(ctx)
				s.mu.Lock()
				s.dev.Close()
				s.mu.Unlock()
				return err
			case <-s.lost():
				select {
				case <-done:
					return h.Close()
				case <-time.After(reconnectDelay):
				}
				s.mu.Lock()
				err := s.dev.Reconnect()
				s.mu.Unlock()
				if err != nil {
					log.Error(err)
				} else {
					log.Infof("Reconnected")
				}
			}
		}
	},
}

// server serializes http requests onto the single K-line
type server struct {
	mu  sync.Mutex
	dev *kwp.Device
}

// lost is closed when the link went down
func (s *server) lost() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Done
}

func (s *server) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ident", s.getIdent).Methods("GET")
	router.HandleFunc("/eeprom/{address}/{count}", s.getEeprom).Methods("GET")
	router.HandleFunc("/rom/{address}/{count}", s.getRom).Methods("GET")
	router.HandleFunc("/version", versionInfo).Methods("GET")
	return router
}

type identResponse struct {
	Info  string `json:"info"`
	Ident string `json:"ident"`
}

type memResponse struct {
	Address uint16 `json:"address"`
	Count   int    `json:"count"`
	Data    string `json:"data"`
}

func (s *server) getIdent(w http.ResponseWriter, r *http.Request) {
	s.withModule(w, func(sess *session) (interface{}, error) {
		ident, err := sess.d.ReadIdent()
		if err != nil {
			return nil, err
		}
		return identResponse{Info: sess.info.Text, Ident: ident.Text}, nil
	})
}

func (s *server) getEeprom(w http.ResponseWriter, r *http.Request) {
	s.readMem(w, r, func(d *kwp.Dialog) func(uint16, int, byte) ([]byte, error) { return d.DumpEeprom })
}

func (s *server) getRom(w http.ResponseWriter, r *http.Request) {
	s.readMem(w, r, func(d *kwp.Dialog) func(uint16, int, byte) ([]byte, error) { return d.DumpRomEeprom })
}

func (s *server) readMem(w http.ResponseWriter, r *http.Request, reader func(*kwp.Dialog) func(uint16, int, byte) ([]byte, error)) {
	params := mux.Vars(r)
	addr, err := parseAddress(params["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	count, err := parseLength(params["count"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.withModule(w, func(sess *session) (interface{}, error) {
		mem, err := reader(sess.d)(addr, count, kwp.DefaultChunkSize)
		if err != nil {
			return nil, err
		}
		return memResponse{Address: addr, Count: len(mem), Data: hex.EncodeToString(mem)}, nil
	})
}

// withModule wakes the module, runs run and answers with its result as json
func (s *server) withModule(w http.ResponseWriter, run func(*session) (interface{}, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := wakeUp(s.dev)
	var v interface{}
	if err == nil {
		v, err = run(sess)
		err = sess.end(err)
	}
	if err != nil {
		if linkBroken(err) {
			log.Warnf("Link lost: %v", err)
			s.dev.Close()
		}
		writeError(w, statusOf(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

// linkBroken reports errors of the connection itself, a new wakeup will not help
func linkBroken(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EIO) ||
		errors.As(err, &opErr)
}

func statusOf(err error) int {
	var refused *kwp.ReadRefusedError
	switch {
	case errors.As(err, &refused), errors.Is(err, kwp.ErrLoginRejected):
		return http.StatusForbidden
	case errors.Is(err, kwp.ErrTimeout), errors.Is(err, kwp.ErrWakeupFailed):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: Version, BuildDate: BuildDate}
	j, _ := json.Marshal(v)
	w.Write(j)
}
