package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/petasbytes/budgetchat/internal/runner"
)

// labelsFor styles the prompt labels for w. Writers that are not terminals
// get plain text.
func labelsFor(w io.Writer) runner.Labels {
	re := lipgloss.NewRenderer(w)
	user := re.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	agent := re.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	return runner.Labels{
		User:  user.Render("You") + ": ",
		Agent: agent.Render("Chatbot") + ": ",
	}
}
