// Package h1x is an HTTP/1.1 connection engine: a role-parameterized
// state machine that drives one duplex byte stream through repeated
// read-head / run-service / write-head exchanges. It owns message
// framing and connection persistence; everything application-level
// lives behind the Service interface.
//
// Highlights
//   - One state machine for both sides: a server-role connection reads
//     a request, runs the Service, writes the response; a client-role
//     connection runs the Service for a request, writes it, reads the
//     response. Keep-alive loops either way.
//   - Three body variants: Buffered (in memory), ExactSize (known
//     length, streamed and length-checked) and Streaming (unknown
//     length, chunked on the wire).
//   - Non-blocking core: Poll does whatever work is possible and
//     reports Suspended instead of blocking; Run is the
//     one-goroutine-per-connection driver on top of it.
//   - Server and Client wrappers with pooling, deadlines and
//     logging/metrics hooks.
//
// Quick start (server):
//
//	s := &h1x.Server{Addr: ":8080"}
//	s.Service = h1x.ServiceFunc(func(ctx context.Context, in *h1x.Message) (*h1x.Message, error) {
//	    return &h1x.Message{
//	        Head: h1x.Head{Status: 200},
//	        Body: h1x.BufferedBody([]byte("hello")),
//	    }, nil
//	})
//	if err := s.ListenAndServe(); err != nil { log.Fatal(err) }
//
// Quick start (client):
//
//	c := &h1x.Client{}
//	res, err := c.Do(ctx, "127.0.0.1:8080", &h1x.Message{
//	    Head: h1x.Head{Method: "GET", Target: "/"},
//	})
//	if err != nil { log.Fatal(err) }
//	defer res.Close()
//	b, _ := io.ReadAll(res.Body)
//	fmt.Println(res.Head.Status, string(b))
package h1x
