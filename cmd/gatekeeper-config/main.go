package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/gatekeeper/logger"
	"github.com/oarkflow/gatekeeper/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("gatekeeper-config - Configuration tool for gatekeeper")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gatekeeper-config convert <input> <output>                       - Convert between formats")
	fmt.Println("  gatekeeper-config validate <file>                                - Validate configuration")
	fmt.Println("  gatekeeper-config stats <file>                                   - Show configuration statistics")
	fmt.Println("  gatekeeper-config check <file> <tenant> <user> <action> <resource> - Evaluate one request against the config")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: gatekeeper-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := gatekeeper.LoadConfigFile(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	var data []byte
	switch filepath.Ext(outputFile) {
	case ".json":
		data, err = cfg.ToJSON()
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	default:
		fmt.Printf("Unsupported output format: %s\n", filepath.Ext(outputFile))
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error rendering config: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: gatekeeper-config validate <file>")
		os.Exit(1)
	}

	cfg, err := gatekeeper.LoadConfigFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	result := cfg.Validate()
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			fmt.Printf("error: %s\n", e)
		}
		fmt.Println("Configuration is INVALID")
		os.Exit(1)
	}
	fmt.Println("Configuration is valid")
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: gatekeeper-config stats <file>")
		os.Exit(1)
	}

	cfg, err := gatekeeper.LoadConfigFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	s := cfg.Stats()
	fmt.Printf("Tenants:     %d\n", s.Tenants)
	fmt.Printf("Roles:       %d\n", s.Roles)
	fmt.Printf("Permissions: %d\n", s.Permissions)
	fmt.Printf("Policies:    %d\n", s.Policies)
	fmt.Printf("Memberships: %d\n", s.Memberships)
}

// handleCheck loads the config into in-memory stores and runs a single
// evaluation, printing the decision.
func handleCheck() {
	if len(os.Args) < 7 {
		fmt.Println("Usage: gatekeeper-config check <file> <tenant> <user> <action> <resource>")
		os.Exit(1)
	}

	cfg, err := gatekeeper.LoadConfigFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	tenant, user, action, resource := os.Args[3], os.Args[4], os.Args[5], os.Args[6]

	log := logger.NewNullLogger()
	policyStore := stores.NewMemoryPolicyStore()
	rbac := gatekeeper.NewRBACService(
		stores.NewMemoryRoleStore(),
		stores.NewMemoryPermissionStore(),
		stores.NewMemoryAssignmentStore(),
		log,
	)
	policies := gatekeeper.NewPolicyService(policyStore, log)

	ctx := context.Background()
	if err := cfg.Apply(ctx, rbac, policies); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	engine := gatekeeper.NewEngine(policyStore, rbac)
	decision, err := engine.Evaluate(ctx, tenant, user, action, resource, nil)
	if err != nil {
		fmt.Printf("Error evaluating: %v\n", err)
		os.Exit(1)
	}

	verdict := "DENY"
	if decision.Allowed {
		verdict = "ALLOW"
	}
	fmt.Printf("%s  %s\n", verdict, decision.Reason)
	if decision.MatchedPolicyID != "" {
		fmt.Printf("matched policy: %s\n", decision.MatchedPolicyID)
	}
}
