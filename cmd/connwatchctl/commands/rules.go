package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage classification rules",
	Long: `Manage the per-device rules that map zone and interface names to a
traffic side (inside, outside, or ignore).

Examples:
  # Rules for every device
  connwatchctl rules list

  # Rules for one firewall
  connwatchctl rules list --device ha:FW-Berlin

  # Zone names seen in events for a firewall
  connwatchctl rules names ha:FW-Berlin zone

  # Map a zone to the inside
  connwatchctl rules set ha:FW-Berlin zone lan inside

  # Remove a rule
  connwatchctl rules delete ha:FW-Berlin zone lan`,
}

var rulesDevice string

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List classification rules",
	RunE:  runRulesList,
}

var rulesNamesCmd = &cobra.Command{
	Use:   "names <device> <zone|interface>",
	Short: "List zone or interface names seen in events",
	Args:  cobra.ExactArgs(2),
	RunE:  runRulesNames,
}

var rulesPriority int

var rulesSetCmd = &cobra.Command{
	Use:   "set <device> <zone|interface> <name> <inside|outside|ignore>",
	Short: "Create or update a classification rule",
	Args:  cobra.ExactArgs(4),
	RunE:  runRulesSet,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <device> <zone|interface> <name>",
	Short: "Delete a classification rule",
	Args:  cobra.ExactArgs(3),
	RunE:  runRulesDelete,
}

func init() {
	rulesListCmd.Flags().StringVar(&rulesDevice, "device", "", "Limit to one firewall key")
	rulesSetCmd.Flags().IntVar(&rulesPriority, "priority", 0, "Rule priority (higher wins)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesNamesCmd)
	rulesCmd.AddCommand(rulesSetCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := getClient().ListRules(rulesDevice)
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	table := output.NewTableData("DEVICE", "KIND", "NAME", "SIDE", "PRIORITY")
	for _, r := range rules {
		table.AddRow(r.Device, r.Kind, r.Name, r.Side, fmt.Sprintf("%d", r.Priority))
	}
	return printResult(rules, len(rules) == 0, "No classification rules.", table)
}

func runRulesNames(cmd *cobra.Command, args []string) error {
	names, err := getClient().ClassifyNames(args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to list %s names for %s: %w", args[1], args[0], err)
	}

	table := output.NewTableData("NAME")
	for _, n := range names {
		table.AddRow(n)
	}
	return printResult(names, len(names) == 0, fmt.Sprintf("No %s names seen for %s.", args[1], args[0]), table)
}

func runRulesSet(cmd *cobra.Command, args []string) error {
	rule, err := getClient().SetRule(args[0], args[1], args[2], args[3], rulesPriority)
	if err != nil {
		return fmt.Errorf("failed to set rule: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success(fmt.Sprintf("Rule set: %s %s %q is %s.", rule.Device, rule.Kind, rule.Name, rule.Side))
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	if err := getClient().DeleteRule(args[0], args[1], args[2]); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success(fmt.Sprintf("Rule deleted: %s %s %q.", args[0], args[1], args[2]))
	return nil
}
