package gateway

import "github.com/cloudwego/eino/schema"

// Tool names the model may invoke. The wire names are part of the product's
// prompt contract and must not drift.
const (
	toolVerifyIdentity = "trigger_neural_sigil_sync"
	toolReprogramUI    = "reprogram_nebula_interface"
	toolStoreMemory    = "store_global_memory"
)

// declaredTools returns the three callable capabilities bound to the chat
// model: identity verification, interface reprogramming and memory writes.
func declaredTools() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: toolVerifyIdentity,
			Desc: "Trigger biometric identity verification. Only call this if the user says they want to verify their identity or explicitly claims to be Kingston, Jacob, Duane, John, Abryan, or Vicky.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"claimed_identity": {
					Type:     schema.String,
					Desc:     "The specific name the user is claiming.",
					Required: true,
				},
			}),
		},
		{
			Name: toolReprogramUI,
			Desc: "DYNAMICALLY REPROGRAMS UI: Changes the layout, theme, colors, and font style. ONLY call this if the user EXPLICITLY asks to change the theme, layout, colors, or appearance of the app.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"layout_style": {
					Type:     schema.String,
					Desc:     "The structural layout of the application.",
					Enum:     []string{"classic-centered", "expansive-edge", "floating-glass", "terminal-minimal"},
					Required: true,
				},
				"primary_color": {
					Type:     schema.String,
					Desc:     "Hex code for primary accents.",
					Required: true,
				},
				"secondary_color": {
					Type: schema.String,
					Desc: "Hex code for secondary accents.",
				},
				"background_color": {
					Type: schema.String,
					Desc: "Hex code for the global background.",
				},
			}),
		},
		{
			Name: toolStoreMemory,
			Desc: "Saves important facts about the user to long-term memory. Use this only for permanent personal information.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"memory_fact": {
					Type:     schema.String,
					Desc:     "The specific fact to remember about the user.",
					Required: true,
				},
			}),
		},
	}
}
