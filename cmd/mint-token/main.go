package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
)

// mint-token signs a development access token for an org, standing in for the
// identity provider in local and staging environments. Production tokens come
// from the real issuer; this tool only needs to share API_SECRET with the
// target service.
func main() {
	orgID := flag.String("org-id", "", "Required: org id (uuid)")
	userID := flag.Int("user-id", 1, "User id claim")
	role := flag.String("role", "operator", "Role claim (operator or admin)")
	flag.Parse()

	if strings.TrimSpace(*orgID) == "" {
		fmt.Fprintln(os.Stderr, "--org-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()

	ctx := context.Background()
	org, err := models.GetOrganization(ctx, *orgID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unknown org %s: %v\n", *orgID, err)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*userID, org.ID.String(), *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
