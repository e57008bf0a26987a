// Command player is a terminal playback client for a K-Tunes server. It
// fetches the catalog, builds a queue and drives the audio output through the
// playback controller, reporting plays back to the server. Transport commands
// are read line by line from stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"K-Tunes/pkg/media"
	"K-Tunes/pkg/player"
	"K-Tunes/pkg/reporter"
	"K-Tunes/pkg/track"
)

// fetchTracks downloads the catalog from the server, optionally filtered by
// a search query.
func fetchTracks(server, query string) ([]track.Track, error) {
	u := server + "/api/tracks"
	if query != "" {
		u += "?q=" + query
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var ts []track.Track
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// writeQueue renders the queue with its live positions, marking the current
// track. Queue positions drift from the catalog numbering once tracks are
// removed, so rm targets are always resolved against this listing.
func writeQueue(w io.Writer, s player.Snapshot) {
	if len(s.Queue) == 0 {
		fmt.Fprintln(w, "-- queue empty --")
		return
	}
	for i, t := range s.Queue {
		marker := " "
		if i == s.QueueIndex {
			marker = ">"
		}
		fmt.Fprintf(w, "%s%3d  %s — %s\n", marker, i, t.Title, t.Artist)
	}
}

// printStatus renders a one-line summary of the controller snapshot.
func printStatus(s player.Snapshot) {
	if s.Track == nil {
		fmt.Println("-- idle --")
		return
	}
	flags := ""
	if s.Repeat {
		flags += " repeat"
	}
	if s.Shuffle {
		flags += " shuffle"
	}
	if s.Muted {
		flags += " muted"
	}
	fmt.Printf("[%s] %s — %s  %s/%s  vol %d%%%s\n",
		s.State, s.Track.Title, s.Track.Artist,
		s.Position.Round(time.Second), s.Duration.Round(time.Second),
		s.Volume, flags)
	if s.Err != "" {
		fmt.Println("error:", s.Err)
	}
}

func main() {
	server := flag.String("server", "http://localhost:4000", "K-Tunes server URL")
	query := flag.String("q", "", "catalog search query used to build the queue")
	user := flag.String("user", "", "user ID attached to play reports")
	flag.Parse()

	log.SetLevel(log.WarnLevel)

	tracks, err := fetchTracks(strings.TrimSuffix(*server, "/"), *query)
	if err != nil {
		log.WithError(err).Fatal("fetch tracks")
	}
	if len(tracks) == 0 {
		fmt.Println("no tracks in catalog")
		return
	}
	for i, t := range tracks {
		fmt.Printf("%3d  %s — %s\n", i, t.Title, t.Artist)
	}

	rep := &reporter.HTTP{BaseURL: strings.TrimSuffix(*server, "/")}
	ctrl := player.New(media.NewPlayer(), rep)
	ctrl.SetUser(*user)

	fmt.Println(`commands: play <n>, p (pause/resume), n (next), b (previous),
seek <seconds>, vol <0-100>, mute, repeat, shuffle, queue, rm <n>, status, quit`)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		cmd := fields[0]
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		switch cmd {
		case "play":
			i, err := strconv.Atoi(arg)
			if err != nil || i < 0 || i >= len(tracks) {
				fmt.Println("play needs a valid track number")
				continue
			}
			if err := ctrl.PlayTrack(tracks[i], tracks); err != nil {
				fmt.Println("error:", err)
			}
		case "p":
			if err := ctrl.TogglePlayPause(); err != nil {
				fmt.Println("error:", err)
			}
		case "n":
			if err := ctrl.NextTrack(); err != nil {
				fmt.Println("error:", err)
			}
		case "b":
			if err := ctrl.PreviousTrack(); err != nil {
				fmt.Println("error:", err)
			}
		case "seek":
			secs, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("seek needs a position in seconds")
				continue
			}
			if err := ctrl.Seek(time.Duration(secs) * time.Second); err != nil {
				fmt.Println("error:", err)
			}
		case "vol":
			level, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("vol needs a 0-100 level")
				continue
			}
			ctrl.SetVolume(level)
		case "mute":
			fmt.Println("muted:", ctrl.ToggleMute())
		case "repeat":
			fmt.Println("repeat:", ctrl.ToggleRepeat())
		case "shuffle":
			fmt.Println("shuffle:", ctrl.ToggleShuffle())
		case "queue":
			writeQueue(os.Stdout, ctrl.Snapshot())
		case "rm":
			i, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("rm needs a queue position (see: queue)")
				continue
			}
			if err := ctrl.RemoveFromQueue(i); err != nil {
				fmt.Println("error:", err)
				continue
			}
			writeQueue(os.Stdout, ctrl.Snapshot())
		case "status":
			printStatus(ctrl.Snapshot())
		case "quit", "q":
			ctrl.ClosePlayer()
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}
