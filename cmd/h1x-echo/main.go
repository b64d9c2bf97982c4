// Command h1x-echo runs an echo server on the h1x engine and, with
// -target, sends one request to it as a client. Telemetry flows to
// whatever the OTEL_* environment variables configure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"dqx0.com/go/transports/h1x"
	"dqx0.com/go/transports/internal/obs"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	target := flag.String("target", "", "send one echo request to this host:port instead of serving")
	flag.Parse()

	if *target != "" {
		if err := runClient(*target); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if err := runServer(*addr); err != nil {
		log.Fatalln(err)
	}
}

func runServer(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &h1x.Server{
		Addr: addr,
		Config: h1x.Config{
			Logger: obs.NewBridgeLogger("h1x-echo"),
			Meter:  obs.NewOTelMeter("h1x-echo"),
		},
		Service: h1x.ServiceFunc(func(ctx context.Context, in *h1x.Message) (*h1x.Message, error) {
			body, err := io.ReadAll(in.Body)
			if err != nil {
				return nil, err
			}
			out := &h1x.Message{Head: h1x.Head{Status: 200}}
			out.Head.Header.Set("content-type", "text/plain; charset=utf-8")
			if len(body) == 0 {
				body = []byte(in.Head.Method + " " + in.Head.Target + "\n")
			}
			out.Body = h1x.BufferedBody(body)
			return out, nil
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runClient(target string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := &h1x.Client{
		Config: h1x.Config{
			Logger: obs.NewBridgeLogger("h1x-echo"),
			Meter:  obs.NewOTelMeter("h1x-echo"),
		},
	}
	defer c.Close()

	req := &h1x.Message{
		Head: h1x.Head{Method: "POST", Target: "/echo"},
		Body: h1x.BufferedBody([]byte("hello over h1x\n")),
	}
	res, err := c.Do(ctx, target, req)
	if err != nil {
		return err
	}
	defer res.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%d %s", res.Head.Status, b)
	return nil
}
