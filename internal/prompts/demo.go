package prompts

import "storyline-server/pkg/ai"

// DemoScript - ответы для клиента scripted, позволяющие пройти игру без внешнего сервиса.
func DemoScript() map[string][]ai.Reply {
	return map[string][]ai.Reply{
		StepConcept: {{Text: "```json\n" + `{"author": "Agatha Christie", "title": "The Lantern at Fenwick Hall", "writing_style": "A wry, meticulous narrator who hides clues in plain sight."}` + "\n```"}},
		StepStoryMap: {{Text: `{"nodes": [
  {"id": "start", "label": "A Letter in the Rain", "details": "Inspector Mara Quill arrives at Fenwick Hall on a stormy night, summoned by a letter its owner never sent."},
  {"id": "node_1", "label": "The Locked Study", "details": "The study door is bolted from the inside and the lantern on the desk is still warm."},
  {"id": "node_2", "label": "Whispers Below Stairs", "details": "The staff trade nervous glances; the butler Edwin knows more than he admits."},
  {"id": "end_good", "label": "The Lantern Speaks", "details": "Mara reveals how the lantern was used to fake the time of death."},
  {"id": "end_bad", "label": "The Storm Keeps Its Secret", "details": "The culprit slips away with the morning tide."}
],
"edges": [
  {"from": "start", "to": "node_1", "label": "Force the study door"},
  {"from": "start", "to": "node_2", "label": "Question the staff"},
  {"from": "node_1", "to": "end_good", "label": "Examine the lantern"},
  {"from": "node_2", "to": "end_bad", "label": "Trust the butler"}
]}`}},
		StepChoices: {{Text: `{"choices": [{"id": 1, "text": "Force the study door"}, {"id": 2, "text": "Question the staff"}, {"id": 3, "text": "Read the letter again"}]}`}},
		StepNextScene: {{Text: `{"current_node_id": "node_1", "content": "The bolt gives way with a crack. Inside, the lantern hisses softly beside an untouched cup of tea.", "choices": [{"id": 1, "text": "Examine the lantern"}, {"id": 2, "text": "Check the window latch"}]}`}},
	}
}
