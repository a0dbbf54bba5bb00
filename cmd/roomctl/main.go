// roomctl is the operator tool: it opens the store directly (read-only
// where possible) to list rooms, end them, sweep idle ones, search the
// message index and mint admin tokens.
package main

import (
	"chat-bridge/auth"
	"chat-bridge/repositories"
	"chat-bridge/services"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "path to badger DB")
	blugePath := flag.String("bluge", "", "path to bluge index (search only)")
	secret := flag.String("secret", "", "admin secret (token only)")
	idleTTL := flag.Duration("ttl", 24*time.Hour, "idle TTL (sweep only)")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	logger := logs.GetLoggerFromString("WARN")
	command := flag.Arg(0)

	switch command {
	case "token":
		if *secret == "" {
			log.Fatal("token requires -secret")
		}
		operator := argOr(1, "operator")
		token, err := auth.NewTokenManager(*secret).Generate(
			operator, []string{"rooms:end", "rooms:read"}, 24*time.Hour)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(token)
		return
	case "search":
		if *blugePath == "" {
			log.Fatal("search requires -bluge")
		}
		runSearch(*blugePath, strings.Join(flag.Args()[1:], " "))
		return
	}

	if *dbPath == "" {
		log.Fatalf("%s requires -db", command)
	}
	readOnly := command == "list"
	db, err := openDB(*dbPath, readOnly)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rooms := repositories.NewRoomRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger)
	roomService := services.NewRoomService(rooms, messages, logger, 1, time.Millisecond)

	switch command {
	case "list":
		runList(rooms, messages)
	case "end":
		code := argOr(1, "")
		if code == "" {
			log.Fatal("end requires a room code")
		}
		if err := roomService.EndRoom(code); err != nil {
			log.Fatal(err)
		}
		color.Green.Printf("Room %s ended\n", code)
	case "sweep":
		ended, err := roomService.SweepIdle(*idleTTL, time.Now().UTC())
		if err != nil {
			log.Fatal(err)
		}
		if len(ended) == 0 {
			fmt.Println("Nothing to sweep")
			return
		}
		color.Yellow.Printf("Ended %d idle room(s): %s\n", len(ended), strings.Join(ended, ", "))
	default:
		usage()
		os.Exit(2)
	}
}

func runList(rooms repositories.RoomRepository, messages repositories.MessageRepository) {
	all, err := rooms.ListRooms()
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Status", "Occupancy", "Messages", "Dispatched", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, room := range all {
		history, _ := messages.ListByRoom(room.Code)
		table.Append([]string{
			room.Code,
			string(room.Status),
			strconv.Itoa(room.Occupancy()),
			strconv.Itoa(len(history)),
			strconv.FormatBool(room.BroadcastDispatched),
			room.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}

func runSearch(blugePath, query string) {
	if strings.TrimSpace(query) == "" {
		log.Fatal("search requires a query")
	}

	reader, err := bluge.OpenReader(bluge.DefaultConfig(blugePath))
	if err != nil {
		log.Fatal("Error while opening bluge index: ", err)
	}
	defer reader.Close()

	hits, err := searchIndex(reader, query)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Message ID", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, hit := range hits {
		table.Append(hit)
	}
	table.Render()
}

func searchIndex(reader *bluge.Reader, query string) ([][]string, error) {
	q := bluge.NewMatchQuery(query).SetField("content")
	req := bluge.NewTopNSearch(20, q).WithStandardAggregations()
	iterator, err := reader.Search(context.Background(), req)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		row := make([]string, 3)
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "room":
				row[0] = string(value)
			case "_id":
				row[1] = string(value)
			case "content":
				row[2] = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithBypassLockGuard(true)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}
	return badger.Open(opts)
}

func argOr(i int, fallback string) string {
	if flag.NArg() > i {
		return flag.Arg(i)
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: roomctl [flags] <command>

Commands:
  list              list rooms (-db)
  end <code>        mark a room ENDED (-db)
  sweep             end idle rooms (-db, -ttl)
  search <query>    search message contents (-bluge)
  token [operator]  mint an admin token (-secret)`)
	flag.PrintDefaults()
}
