// vrctl sends a single command to a running vrlisten, for checking the
// wiring without a microphone.
//
//	vrctl ping
//	vrctl pair <group> <name>
//	vrctl vset <name>
package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"github.com/omotayoh/vRvoice/internal/dispatch"
	"github.com/omotayoh/vRvoice/pkg/wire"
)

func main() {
	host := cli.String("host", "127.0.0.1", "Listener host")
	port := cli.Int("port", 8777, "Listener port")
	token := cli.String("token", "", "Shared secret token (overrides VRVOICE_TOKEN)")
	cli.Parse()

	if *token == "" {
		*token = os.Getenv("VRVOICE_TOKEN")
	}

	opts := []dispatch.ClientOption{}
	if *token != "" {
		opts = append(opts, dispatch.WithToken(*token))
	}
	client := dispatch.NewClient(fmt.Sprintf("%s:%d", *host, *port), opts...)

	args := cli.Args()
	if len(args) == 0 {
		usage()
	}

	var (
		resp wire.Response
		err  error
	)
	switch args[0] {
	case "ping":
		resp, err = client.Ping()
	case "pair":
		if len(args) != 3 {
			usage()
		}
		resp, err = client.ActivatePair(args[1], args[2])
	case "vset":
		if len(args) != 2 {
			usage()
		}
		resp, err = client.ActivateVset(args[1])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "vrlisten not reachable:", err)
		os.Exit(1)
	}
	if !resp.Ok {
		fmt.Fprintln(os.Stderr, "rejected:", resp.Error)
		os.Exit(1)
	}
	if resp.Pong {
		fmt.Println("pong")
	} else {
		fmt.Println("ok")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vrctl [flags] ping | pair <group> <name> | vset <name>")
	os.Exit(2)
}
