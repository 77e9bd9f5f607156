// Command client is a terminal client for manual play against a local
// server.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type roomResponse struct {
	RoomCode  string `json:"room_code"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

func post(base, path string, body interface{}) (*roomResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post("http://"+base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %s", resp.Status, out.Error)
	}
	return &out, nil
}

// parse turns a typed command into an action frame.
func parse(line string) (map[string]interface{}, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	switch fields[0] {
	case "start":
		return map[string]interface{}{"action": "start_game"}, true
	case "next":
		return map[string]interface{}{"action": "next_round"}, true
	case "settings":
		return map[string]interface{}{"action": "get_settings"}, true
	case "rounds":
		var n int
		if len(fields) < 2 {
			return nil, false
		}
		fmt.Sscanf(fields[1], "%d", &n)
		return map[string]interface{}{"action": "update_settings", "max_rounds": n}, true
	case "arrest":
		if len(fields) < 2 {
			return nil, false
		}
		return map[string]interface{}{"action": "arrest", "arrested_player": strings.Join(fields[1:], " ")}, true
	}
	return nil, false
}

func main() {
	addr := flag.String("server", "localhost:8080", "server address")
	code := flag.String("room", "", "room code to join; empty creates a room")
	name := flag.String("name", "player", "display name")
	avatar := flag.String("avatar", "", "avatar image name")
	flag.Parse()

	body := map[string]string{"name": *name, "avatar": *avatar}
	var joined *roomResponse
	var err error
	if *code == "" {
		joined, err = post(*addr, "/api/rooms", body)
	} else {
		joined, err = post(*addr, "/api/rooms/"+*code+"/join", body)
	}
	if err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	log.Printf("Room %s as %s (session %s)", joined.RoomCode, joined.Name, joined.SessionID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{
		Scheme:   "ws",
		Host:     *addr,
		Path:     "/ws/" + joined.RoomCode,
		RawQuery: url.Values{"session_id": {joined.SessionID}}.Encode(),
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s", message)
		}
	}()

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
	}()

	log.Println("Commands: start | next | settings | rounds <n> | arrest <name>")

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line := <-lines:
			action, ok := parse(line)
			if !ok {
				log.Printf("Unknown command %q", line)
				continue
			}
			if err := c.WriteJSON(action); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", action["action"])
		}
	}
}
