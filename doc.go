// Package scclient is a Go client for the SocketCluster real-time messaging
// protocol: a long-lived, auto-reconnecting, authenticated, multi-channel
// pub/sub and RPC socket over a single WebSocket.
//
// A Socket multiplexes four things over one transport: user-initiated
// emits with acknowledgements, server-initiated events, channel
// subscription lifecycle, and protocol heartbeat. All of it is driven by
// one internal goroutine per socket; every exported method is safe to
// call from any goroutine.
//
// Basic usage:
//
//	sock, err := scclient.New(scclient.WithHost("example.com"), scclient.WithSecure(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sock.On(scclient.EventConnect, func(payload any) {
//	    log.Printf("connected: %v", payload)
//	})
//	if err := sock.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer sock.Close()
//
//	ch := sock.Subscribe("chat")
//	ch.Watch(func(data any) {
//	    log.Printf("chat: %v", data)
//	})
//	sock.Emit("chat-message", map[string]string{"text": "hi"}, func(err error, resp any) {
//	    if err != nil {
//	        log.Printf("emit failed: %v", err)
//	    }
//	})
package scclient
