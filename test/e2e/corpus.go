// Package e2e provides end-to-end tests driving the full ingest and ask flow
// over a corpus of fact documents.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// FactDocument is a document entry in the e2e corpus. Each document carries a
// unique signature phrase so questions can assert the correct document was
// retrieved.
type FactDocument struct {
	ID      string
	Title   string
	Content string
}

// QuestionCase pairs a question with the document ID(s) whose chunks must
// appear in the retrieval result.
type QuestionCase struct {
	Question       string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds documents and question cases for e2e tests.
type Corpus struct {
	Documents      []FactDocument
	Cases          []QuestionCase
	TotalDocs      int
	TotalQuestions int
}

type topic struct {
	title  string
	phrase string
	fact   string
}

var topics = []topic{
	{"Sky Colors", "sky blue scattering", "The sky appears blue because sunlight scatters off air molecules. Sky blue scattering is strongest at short wavelengths."},
	{"Grass Pigment", "grass green chlorophyll", "Grass looks green because of chlorophyll. Grass green chlorophyll absorbs red and blue light."},
	{"Honey Shelf Life", "honey never spoils", "Sealed honey can last for millennia. Honey never spoils thanks to low moisture and high acidity."},
	{"Octopus Hearts", "octopus three hearts", "An octopus has three hearts. Octopus three hearts pump blue copper-based blood."},
	{"Venus Day", "Venus day longer year", "A day on Venus outlasts its year. Venus day longer year because of its slow retrograde rotation."},
	{"Banana Berries", "banana botanical berry", "Botanically a banana is a berry. Banana botanical berry while strawberries are not."},
	{"Eiffel Height", "Eiffel Tower height summer", "The Eiffel Tower grows in the heat. Eiffel Tower height summer expands about fifteen centimetres."},
	{"Great Wall Myth", "Great Wall visible space myth", "The Great Wall is not visible from orbit with the naked eye. Great Wall visible space myth persists anyway."},
	{"Shark Age", "sharks older than trees", "Sharks predate trees by tens of millions of years. Sharks older than trees in the fossil record."},
	{"Water Anomaly", "ice less dense water", "Ice floats because it is less dense than liquid water. Ice less dense water due to its crystal lattice."},
	{"Lightning Heat", "lightning hotter sun surface", "A lightning bolt briefly exceeds the sun's surface temperature. Lightning hotter sun surface by a factor of five."},
	{"Human Bones", "adult human 206 bones", "Adults have 206 bones while infants have about 300. Adult human 206 bones after fusion."},
	{"Mercury Metal", "mercury liquid room temperature", "Mercury is the only metal liquid at room temperature. Mercury liquid room temperature and highly toxic."},
	{"Sound Speed", "sound faster water air", "Sound travels about four times faster in water than in air. Sound faster water air because water is denser."},
	{"Penguin Regions", "penguins southern hemisphere", "Wild penguins live almost entirely south of the equator. Penguins southern hemisphere, not the Arctic."},
	{"Mars Volcano", "Olympus Mons tallest volcano", "Olympus Mons on Mars is the tallest volcano known. Olympus Mons tallest volcano at about 22 kilometres."},
	{"Blue Whale Size", "blue whale largest animal", "The blue whale is the largest animal ever. Blue whale largest animal heavier than any dinosaur."},
	{"Oxygen Source", "ocean plankton oxygen", "Much of Earth's oxygen comes from marine plankton. Ocean plankton oxygen exceeds rainforest output."},
	{"Tea Origin", "tea originated China", "Tea drinking began in China thousands of years ago. Tea originated China before spreading along trade routes."},
	{"Coffee Beans", "coffee beans are seeds", "Coffee beans are the seeds of a cherry-like fruit. Coffee beans are seeds, not true beans."},
	{"Antarctica Desert", "Antarctica largest desert", "Antarctica is the largest desert on Earth. Antarctica largest desert by precipitation, not sand."},
	{"Amazon Flow", "Amazon river largest discharge", "The Amazon discharges more water than any other river. Amazon river largest discharge into the Atlantic."},
	{"Everest Growth", "Everest grows each year", "Mount Everest rises a few millimetres annually. Everest grows each year from tectonic uplift."},
	{"Sahara Snow", "Sahara desert snowfall rare", "Snow occasionally falls in the Sahara. Sahara desert snowfall rare but recorded several times."},
	{"Moon Drift", "Moon drifting away Earth", "The Moon recedes about 3.8 centimetres per year. Moon drifting away Earth as tides transfer momentum."},
	{"Jupiter Storm", "Great Red Spot storm", "Jupiter's Great Red Spot is a centuries-old storm. Great Red Spot storm larger than Earth."},
	{"Saturn Density", "Saturn float water density", "Saturn's average density is below that of water. Saturn float water density in a large enough bath."},
	{"Neutron Star", "neutron star teaspoon mass", "A teaspoon of neutron star material weighs billions of tonnes. Neutron star teaspoon mass defies intuition."},
	{"Light Travel", "sunlight eight minutes Earth", "Sunlight takes about eight minutes to reach us. Sunlight eight minutes Earth across 150 million kilometres."},
	{"Speed of Light", "light speed vacuum constant", "Light in vacuum moves at a fixed speed. Light speed vacuum constant near 300000 kilometres per second."},
	{"DNA Length", "human DNA stretched distance", "Uncoiled DNA from one person spans billions of kilometres. Human DNA stretched distance reaches far past Pluto."},
	{"Ant Strength", "ants carry fifty times", "Ants lift far more than their body weight. Ants carry fifty times their own mass."},
	{"Bee Dance", "honeybees waggle dance", "Honeybees communicate direction through dance. Honeybees waggle dance encodes angle and distance."},
	{"Owl Eyes", "owls cannot move eyes", "Owl eyes are fixed in their sockets. Owls cannot move eyes so they rotate their necks."},
	{"Cheetah Sprint", "cheetah fastest land animal", "The cheetah tops about 110 km/h in short bursts. Cheetah fastest land animal but tires quickly."},
	{"Hummingbird Flight", "hummingbirds fly backwards", "Hummingbirds can reverse in mid-air. Hummingbirds fly backwards using figure-eight wingbeats."},
	{"Camel Humps", "camel humps store fat", "Camel humps hold fat, not water. Camel humps store fat as an energy reserve."},
	{"Elephant Jump", "elephants cannot jump", "Elephants never leave the ground with all four feet. Elephants cannot jump due to their build."},
	{"Koala Prints", "koala fingerprints human", "Koala fingerprints resemble ours closely. Koala fingerprints human enough to confuse examiners."},
	{"Platypus Traits", "platypus lays eggs mammal", "The platypus is an egg-laying mammal. Platypus lays eggs mammal with a duck-like bill."},
	{"Axolotl Limbs", "axolotl regenerate limbs", "Axolotls regrow lost body parts. Axolotl regenerate limbs, spinal cord, and heart tissue."},
	{"Tardigrade Survival", "tardigrades survive space vacuum", "Tardigrades endure extreme environments. Tardigrades survive space vacuum in a dried state."},
	{"Jellyfish Age", "immortal jellyfish reverts", "One jellyfish species can reverse its life cycle. Immortal jellyfish reverts to its polyp stage."},
	{"Crow Tools", "crows use tools", "Crows fashion and use tools. Crows use tools such as bent wires to fetch food."},
	{"Dolphin Names", "dolphins signature whistles", "Dolphins address each other individually. Dolphins signature whistles act like personal names."},
	{"Wood Frog Freeze", "wood frogs freeze solid", "Wood frogs survive being frozen. Wood frogs freeze solid and thaw in spring."},
	{"Sloth Digestion", "sloths digest leaf weeks", "A sloth may take weeks to digest one meal. Sloths digest leaf weeks at a time."},
	{"Giraffe Sleep", "giraffes sleep few minutes", "Giraffes sleep in short bursts. Giraffes sleep few minutes at a stretch, hours per day total."},
	{"Polar Bear Skin", "polar bear black skin", "Under white fur a polar bear is dark. Polar bear black skin absorbs heat."},
	{"Flamingo Color", "flamingos pink from diet", "Flamingos are born grey. Flamingos pink from diet rich in carotenoid shrimp and algae."},
	{"Starfish Arms", "starfish regrow arms", "Starfish can regenerate lost arms. Starfish regrow arms and sometimes a whole body from one."},
	{"Seahorse Birth", "male seahorses give birth", "In seahorses the male carries the young. Male seahorses give birth from a brood pouch."},
	{"Oyster Gender", "oysters change gender", "Oysters switch sex during their lives. Oysters change gender sometimes more than once."},
	{"Butterfly Taste", "butterflies taste with feet", "Butterflies sample plants by standing on them. Butterflies taste with feet using chemoreceptors."},
	{"Snail Teeth", "snails thousands tiny teeth", "A garden snail rasps food with a toothed ribbon. Snails thousands tiny teeth on the radula."},
	{"Spider Silk", "spider silk stronger steel", "By weight spider silk outperforms steel. Spider silk stronger steel of the same thickness."},
	{"Firefly Light", "fireflies cold light bioluminescence", "Firefly light wastes almost no energy as heat. Fireflies cold light bioluminescence is nearly 100 percent efficient."},
	{"Mantis Shrimp", "mantis shrimp punch speed", "The mantis shrimp strikes with astonishing acceleration. Mantis shrimp punch speed rivals a bullet's."},
	{"Electric Eel", "electric eel 600 volts", "Electric eels stun prey with strong discharges. Electric eel 600 volts from stacked electrocytes."},
	{"Chameleon Tongue", "chameleon tongue twice body", "A chameleon's tongue outreaches its body. Chameleon tongue twice body length in some species."},
	{"Komodo Venom", "Komodo dragons venom glands", "Komodo dragons are venomous. Komodo dragons venom glands lower prey blood pressure."},
	{"Hippo Sunscreen", "hippos secrete red sunscreen", "Hippos ooze a reddish protective fluid. Hippos secrete red sunscreen that blocks UV."},
	{"Horse Sleep", "horses sleep standing up", "Horses doze upright using locking joints. Horses sleep standing up but lie down for deep sleep."},
	{"Cow Compass", "cows align magnetic north", "Grazing cows tend to face the poles. Cows align magnetic north in satellite surveys."},
	{"Goat Pupils", "goats rectangular pupils", "Goat eyes have wide horizontal pupils. Goats rectangular pupils grant panoramic vision."},
	{"Cat Purr", "cat purring healing frequency", "Cat purrs fall in a restorative range. Cat purring healing frequency may aid bone repair."},
	{"Dog Smell", "dogs smell forty times", "A dog's nose vastly outperforms ours. Dogs smell forty times more scent receptors."},
	{"Rabbit Vision", "rabbits nearly 360 vision", "Rabbits see almost all the way around. Rabbits nearly 360 vision with a small blind spot in front."},
	{"Pigeon Math", "pigeons count abstract numbers", "Pigeons can order quantities. Pigeons count abstract numbers in lab tasks."},
	{"Parrot Mimic", "parrots mimic human speech", "Parrots reproduce speech without lips. Parrots mimic human speech using the syrinx."},
	{"Pluto Orbit", "Pluto orbit 248 years", "Pluto needs centuries for one lap of the sun. Pluto orbit 248 years per revolution."},
	{"Mercury Temps", "Mercury extreme temperature swings", "Mercury swings hundreds of degrees between day and night. Mercury extreme temperature swings with almost no atmosphere."},
	{"Solar Mass", "Sun 99 percent mass", "The Sun dominates the solar system's matter. Sun 99 percent mass of the whole system."},
	{"Milky Way Stars", "Milky Way hundred billion stars", "Our galaxy holds a vast stellar count. Milky Way hundred billion stars or more."},
	{"Andromeda Collision", "Andromeda collide Milky Way", "Andromeda approaches our galaxy. Andromeda collide Milky Way in about four billion years."},
	{"Black Hole Time", "black hole time dilation", "Clocks slow near strong gravity. Black hole time dilation stretches time near the horizon."},
	{"Helium Voice", "helium voice pitch higher", "Helium raises the pitch of speech. Helium voice pitch higher because sound speeds up in it."},
	{"Glass Flow Myth", "glass solid not liquid", "Old windows are thicker at the bottom by manufacture, not flow. Glass solid not liquid at room temperature."},
	{"Penny Drop Myth", "penny dropped skyscraper harmless", "A falling penny reaches modest terminal velocity. Penny dropped skyscraper harmless though unpleasant."},
	{"Goldfish Memory", "goldfish memory months", "Goldfish remember far longer than seconds. Goldfish memory months in training experiments."},
	{"Bat Vision", "bats not blind echolocation", "Bats see reasonably well. Bats not blind echolocation simply adds precision in the dark."},
	{"Bull Color", "bulls colorblind red", "Bulls charge at motion, not color. Bulls colorblind red looks grey to them."},
	{"Sugar Hyper Myth", "sugar hyperactivity myth children", "Controlled studies find no sugar rush. Sugar hyperactivity myth children persists among parents."},
	{"Brain Usage Myth", "humans use whole brain", "The ten percent figure is false. Humans use whole brain over the course of a day."},
	{"Tongue Map Myth", "tongue taste map wrong", "All taste types register across the tongue. Tongue taste map wrong despite old textbooks."},
	{"Hair Growth Myth", "shaving hair grows thicker myth", "Shaving does not change hair thickness. Shaving hair grows thicker myth comes from blunt regrowth."},
	{"Knuckle Cracking", "knuckle cracking arthritis myth", "Cracking joints releases gas bubbles. Knuckle cracking arthritis myth unsupported by studies."},
	{"Swallowed Gum", "swallowed gum seven years myth", "Gum passes through in days. Swallowed gum seven years myth is folklore."},
	{"Daddy Longlegs", "daddy longlegs venom myth", "Harvestmen lack venom glands entirely. Daddy longlegs venom myth is doubly wrong."},
	{"Ostrich Head", "ostriches bury head myth", "Ostriches do not hide their heads in sand. Ostriches bury head myth comes from nest-tending posture."},
	{"Lemming Cliff", "lemmings mass suicide myth", "Lemmings do not leap off cliffs deliberately. Lemmings mass suicide myth was staged on film."},
	{"Napoleon Height", "Napoleon average height", "Napoleon was not unusually short. Napoleon average height for a Frenchman of his era."},
	{"Viking Helmets", "Vikings horned helmets myth", "No horned Viking helmet has been found. Vikings horned helmets myth began with opera costumes."},
	{"Medieval Flat Earth", "medieval scholars round Earth", "Educated medieval people knew the Earth's shape. Medieval scholars round Earth since antiquity."},
	{"Salem Burnings", "Salem witches hanged not burned", "No accused witch burned at Salem. Salem witches hanged not burned in 1692."},
	{"Einstein Math", "Einstein failed math myth", "Einstein excelled at mathematics young. Einstein failed math myth stems from a grading scale change."},
	{"Edison Bulb", "Edison improved light bulb", "Edison refined rather than invented the bulb. Edison improved light bulb designs of earlier inventors."},
	{"Fortune Cookie", "fortune cookies American invention", "Fortune cookies are not from China. Fortune cookies American invention popularized in California."},
	{"Carrot Vision", "carrots night vision propaganda", "Carrots help only against deficiency. Carrots night vision propaganda covered wartime radar."},
	{"Twinkie Lifespan", "Twinkies shelf life weeks", "Twinkies do not last forever. Twinkies shelf life weeks, about forty-five days."},
}

// BuildCorpus returns a corpus of 100 fact documents and one question per
// signature phrase.
func BuildCorpus() *Corpus {
	docs := buildDocuments(100)
	cases := buildQuestionCases(docs)
	return &Corpus{
		Documents:      docs,
		Cases:          cases,
		TotalDocs:      len(docs),
		TotalQuestions: len(cases),
	}
}

func buildDocuments(n int) []FactDocument {
	out := make([]FactDocument, 0, n)
	for i := 0; i < n && i < len(topics); i++ {
		t := topics[i]
		out = append(out, FactDocument{
			ID:      fmt.Sprintf("e2e-doc-%03d", i+1),
			Title:   t.title,
			Content: t.fact,
		})
	}
	// If we need more than len(topics), duplicate with different IDs
	for len(out) < n {
		i := len(out)
		t := topics[i%len(topics)]
		out = append(out, FactDocument{
			ID:      fmt.Sprintf("e2e-doc-%03d", i+1),
			Title:   fmt.Sprintf("%s (%d)", t.title, i+1),
			Content: t.fact,
		})
	}
	return out
}

func buildQuestionCases(docs []FactDocument) []QuestionCase {
	var cases []QuestionCase
	used := make(map[string]bool)
	for _, t := range topics {
		question := "Tell me about " + t.phrase
		for _, d := range docs {
			if containsPhrase(d, t.phrase) && !used[d.ID] {
				cases = append(cases, QuestionCase{
					Question:       question,
					ExpectedDocIDs: []string{d.ID},
					Description:    fmt.Sprintf("question %q should retrieve doc %s", question, d.ID),
				})
				used[d.ID] = true
				break
			}
		}
	}
	return cases
}

func containsPhrase(d FactDocument, phrase string) bool {
	return strings.Contains(strings.ToLower(d.Title), strings.ToLower(phrase)) ||
		strings.Contains(strings.ToLower(d.Content), strings.ToLower(phrase))
}

// ToDocumentInputs converts the corpus documents to models.DocumentInput for ingestion.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	out := make([]*models.DocumentInput, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		out[i] = &models.DocumentInput{
			ID:      d.ID,
			Title:   d.Title,
			Content: d.Content,
		}
	}
	return out
}
