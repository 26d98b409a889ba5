// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package content

// Fallback returns the curated content served when no source loads. Each
// call returns a fresh value.
func Fallback() *SiteContent {
	return &SiteContent{
		Hero: Hero{
			Title:       "Una nueva era para The Covenant",
			Description: "Reimaginamos el archivo oscuro del colectivo con un diseño minimalista, inspirado en la estética original y enfocado en la lectura.",
			CTA:         &NavItem{Label: "Entrar al archivo", Href: "/cronicas"},
		},
		Highlight:  "cronicas/el-umbral",
		Featured:   []string{"cronicas/el-umbral", "experiencias/la-llamada", "noticias/aniversario", "podcast/episodio-ritual"},
		Navigation: DefaultNavigation(),
		Articles: []Article{
			{
				Slug:        "cronicas/el-umbral",
				Title:       "Crónica: El Umbral",
				Description: "Los susurros que se filtran desde la habitación sellada del convento abandonado.",
				Excerpt:     "La noche en que abrimos El Umbral aprendimos que algunos acertijos no quieren ser resueltos. Esta es la bitácora de aquella incursión.",
				CoverImage: &Image{
					URL: "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?auto=format&fit=crop&w=1200&q=80",
					Alt: "Pasillo oscuro iluminado por luces violetas",
				},
				Category:    "Crónicas",
				Tags:        []string{"investigación", "horror"},
				PublishedAt: "2023-10-12",
				ReadingTime: "8 min",
				Sections: []Section{
					{Type: SectionParagraph, Text: "Entramos pasada la medianoche. Las cámaras infrarrojas revelaban siluetas que no debían estar allí y las claves encontradas en el archivo antiguo se reordenaban solas sobre la mesa."},
					{Type: SectionQuote, Text: "El Umbral no es una puerta, es un trato."},
					{Type: SectionParagraph, Text: "Documentamos cada paso con grabadoras analógicas y un mapa trazado a mano. Los símbolos coincidían con los de la web original, confirmando la conexión con los relatos de The Covenant."},
				},
			},
			{
				Slug:        "experiencias/la-llamada",
				Title:       "Experiencia: La llamada",
				Description: "Un recorrido telefónico por voces que no pertenecen a nuestro tiempo.",
				Excerpt:     "Durante 45 minutos respondemos a una serie de llamadas que reconstruyen la desaparición de un iniciad@. Cada llamada abre una capa más profunda de la historia.",
				CoverImage: &Image{
					URL: "https://images.unsplash.com/photo-1526378722484-bd91ca387e72?auto=format&fit=crop&w=1200&q=80",
					Alt: "Cabina telefónica iluminada en morado",
				},
				Category:    "Experiencias",
				Tags:        []string{"juego", "audio"},
				PublishedAt: "2024-02-05",
				ReadingTime: "6 min",
				Sections: []Section{
					{Type: SectionParagraph, Text: "Los participantes reciben instrucciones codificadas en la web original. Cada llamada desbloquea fragmentos de audio y pistas que deben interpretar en tiempo real."},
					{Type: SectionParagraph, Text: "El rediseño del front permite destacar la cronología, mostrar mapas interactivos y facilitar la suscripción a futuras sesiones."},
				},
			},
			{
				Slug:        "noticias/aniversario",
				Title:       "Noticias: Séptimo aniversario",
				Description: "Celebramos siete años de investigaciones colectivas.",
				Excerpt:     "Lanzamos nuevo archivo digital, calendario de eventos híbridos y un repositorio para colaboradores internacionales.",
				CoverImage: &Image{
					URL: "https://images.unsplash.com/photo-1534447677768-be436bb09401?auto=format&fit=crop&w=1200&q=80",
					Alt: "Grupo celebrando en un espacio oscuro",
				},
				Category:    "Noticias",
				Tags:        []string{"evento", "comunidad"},
				PublishedAt: "2024-06-01",
				ReadingTime: "4 min",
				Sections: []Section{
					{Type: SectionParagraph, Text: "El aniversario se celebrará con una transmisión en directo desde el sancta sanctorum del colectivo. Se presentará el nuevo front, inspirado en el diseño original."},
					{Type: SectionParagraph, Text: "La comunidad podrá descargar recursos, acceder a la agenda y colaborar en futuros proyectos cross-media."},
				},
			},
			{
				Slug:        "podcast/episodio-ritual",
				Title:       "Podcast: Ritual de apertura",
				Description: "Primer episodio del podcast con testimonios del equipo de campo.",
				Excerpt:     "Rescatamos grabaciones inéditas de la investigación sobre el monasterio en ruinas. Disponible en todas las plataformas.",
				CoverImage: &Image{
					URL: "https://images.unsplash.com/photo-1453873531674-2151bcd01707?auto=format&fit=crop&w=1200&q=80",
					Alt: "Grabadora antigua con luces moradas",
				},
				Category:    "Podcast",
				Tags:        []string{"audio", "entrevista"},
				PublishedAt: "2024-04-18",
				ReadingTime: "5 min",
				Sections: []Section{
					{Type: SectionParagraph, Text: "El episodio combina paisajes sonoros originales con entrevistas a los guardianes de archivos. El rediseño destaca los reproductores embebidos y las notas del episodio."},
				},
			},
		},
	}
}
