// Command local plays a pass-and-play match on the terminal.
//
//	roll        draw the die for the current player
//	move N      move token N (0-3)
//	quit        leave
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ludo/internal/board"
	"ludo/internal/config"
	"ludo/internal/dice"
	"ludo/internal/local"
	"ludo/internal/rules"
)

func main() {
	mode := flag.String("mode", string(rules.ModeClassic), "classic or quick")
	colors := flag.String("colors", "red,yellow", "comma separated seat colors")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("LUDO_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	weights, err := cfg.AssistWeights()
	if err != nil {
		log.Fatal().Err(err).Msg("dice weights")
	}
	src, err := dice.NewAssist(nil, weights)
	if err != nil {
		log.Fatal().Err(err).Msg("assist dice")
	}

	var seats []board.Color
	for _, name := range strings.Split(*colors, ",") {
		c, err := board.ParseColor(name)
		if err != nil {
			log.Fatal().Err(err).Msg("parse colors")
		}
		seats = append(seats, c)
	}
	m, err := local.New(rules.Mode(*mode), seats, src)
	if err != nil {
		log.Fatal().Err(err).Msg("new match")
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		s := m.State()
		if s.Over() {
			fmt.Printf("%s wins\n", s.WinnerID)
			return
		}
		printState(s, m.LegalTokens())
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "roll":
			res, err := m.Roll()
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("rolled %d (%s)\n", res.Value, res.Outcome)
		case "move":
			if len(fields) != 2 {
				fmt.Println("usage: move N")
				continue
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: move N")
				continue
			}
			res, err := m.Move(idx)
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("moved along %v", res.Path)
			if len(res.Captures) > 0 {
				fmt.Printf(", captured %d", len(res.Captures))
			}
			fmt.Println()
		case "quit":
			return
		default:
			fmt.Println("commands: roll, move N, quit")
		}
	}
}

func printState(s rules.MatchState, legal []int) {
	for i, p := range s.Players {
		marker := " "
		if i == s.CurrentPlayerIndex {
			marker = "*"
		}
		fmt.Printf("%s %-6s", marker, p.Color)
		for _, tok := range p.Tokens {
			fmt.Printf(" %4d", tok.Position)
		}
		fmt.Printf("  finished %d\n", p.Finished())
	}
	if s.DiceValue != 0 {
		fmt.Printf("die %d, movable tokens %v\n", s.DiceValue, legal)
	}
}
