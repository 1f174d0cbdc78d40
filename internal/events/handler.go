package events

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const keepAliveInterval = 15 * time.Second

// SSEHandler streams broker events. ?targets=a,b keeps only events for those
// target elements; ?names=load.failed keeps only those event names.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		q := r.URL.Query()
		id, ch := broker.Subscribe(Filter{Targets: parseSet(q.Get("targets")), Names: parseSet(q.Get("names"))})
		defer broker.Unsubscribe(id)

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		flusher.Flush()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			case evt, open := <-ch:
				if !open {
					return
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Name, evt.Payload)
			}
			flusher.Flush()
		}
	}
}

// parseSet splits a comma list into a set; blank input yields nil.
func parseSet(list string) map[string]bool {
	var set map[string]bool
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if set == nil {
			set = make(map[string]bool)
		}
		set[item] = true
	}
	return set
}
