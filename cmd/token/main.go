// Command token issues an access token for a POS agent, for local testing
// and for provisioning counter terminals.
//
//	go run ./cmd/token -user agent-1 -role sales_agent -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/bus-pos/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "agent id (sub claim)")
	role := flag.String("role", "sales_agent", "role: sales_agent, supervisor, admin or driver")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *user, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
