// Package main is a diagnostic tool for testing database connectivity and
// inspecting live membership data. It connects to the database, queries the
// organizations and teams tables, and prints a summary to stdout. The binary
// exits with a non-zero code on any failure so it can be embedded in health
// checks or CI/CD pipeline steps to gate deployments on a reachable,
// populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "orgs"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=orgs password=%s dbname=orgs sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check organizations
	fmt.Println("=== ORGANIZATIONS ===")
	rows, err := db.Query("SELECT id, name, slug, is_active, publicly_visible FROM organizations")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, slug string
		var active, public bool
		if err := rows.Scan(&id, &name, &slug, &active, &public); err != nil {
			log.Printf("Warning: failed to scan organization row: %v", err)
			continue
		}
		fmt.Printf("Organization: %s (slug: %s, active: %v, public: %v, ID: %s)\n", name, slug, active, public, id)
	}

	// Check teams with member counts
	fmt.Println("\n=== TEAMS ===")
	rows2, err := db.Query(`
		SELECT t.id, t.organization_id, t.name, t.slug, COUNT(tm.id)
		FROM teams t
		LEFT JOIN team_members tm ON tm.team_id = t.id
		GROUP BY t.id, t.organization_id, t.name, t.slug
		ORDER BY t.name`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	count := 0
	for rows2.Next() {
		var id, orgID, name, slug string
		var members int
		if err := rows2.Scan(&id, &orgID, &name, &slug, &members); err != nil {
			log.Printf("Warning: failed to scan team row: %v", err)
			continue
		}
		fmt.Printf("Team: %s (slug: %s, org ID: %s, members: %d, ID: %s)\n", name, slug, orgID, members, id)
		count++
	}

	if count == 0 {
		fmt.Println("No teams found!")
	}
}
